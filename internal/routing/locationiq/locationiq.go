package locationiq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"googlemaps.github.io/maps"

	"github.com/vbonduro/mapnote/internal/geometry"
	"github.com/vbonduro/mapnote/internal/routing"
)

const DefaultBaseURL = "https://us1.locationiq.com"

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type directionsResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

func (c *Client) Route(ctx context.Context, from, to geometry.LatLng) (*routing.Route, error) {
	endpoint := fmt.Sprintf("%s/v1/directions/driving/%s;%s?%s",
		c.baseURL, coordinate(from), coordinate(to),
		url.Values{"key": {c.apiKey}, "overview": {"full"}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call locationiq: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, routing.ErrNoRoute
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("locationiq returned status %d", resp.StatusCode)
	}

	var body directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(body.Routes) == 0 {
		return nil, routing.ErrNoRoute
	}

	best := body.Routes[0]
	decoded, err := maps.DecodePolyline(best.Geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode route geometry: %w", err)
	}

	path := make([]geometry.LatLng, 0, len(decoded))
	for _, p := range decoded {
		path = append(path, geometry.LatLng{Lat: p.Lat, Lng: p.Lng})
	}

	return &routing.Route{
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
		Path:            path,
	}, nil
}

// coordinate formats p in the lng,lat order OSRM-style APIs expect.
func coordinate(p geometry.LatLng) string {
	return strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}
