package openelevation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vbonduro/mapnote/internal/elevation"
	"github.com/vbonduro/mapnote/internal/geometry"
)

const DefaultHost = "https://api.open-elevation.com"

type Client struct {
	host   string
	client *http.Client
}

func NewClient(host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		host:   host,
		client: &http.Client{},
	}
}

func (c *Client) Elevation(ctx context.Context, p geometry.LatLng) (float64, error) {
	locations := strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
	endpoint := c.host + "/api/v1/lookup?locations=" + url.QueryEscape(locations)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call open-elevation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("open-elevation returned status %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Elevation float64 `json:"elevation"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(body.Results) == 0 {
		return 0, elevation.ErrNoData
	}
	return body.Results[0].Elevation, nil
}
