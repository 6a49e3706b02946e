// Package google looks up elevation through the Google Maps Elevation API.
package google

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/vbonduro/mapnote/internal/elevation"
	"github.com/vbonduro/mapnote/internal/geometry"
)

type Client struct {
	client *maps.Client
}

// NewClient builds a client for apiKey. baseURL overrides the Google host and
// is normally empty.
func NewClient(apiKey, baseURL string) (*Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}

	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Client{client: c}, nil
}

func (c *Client) Elevation(ctx context.Context, p geometry.LatLng) (float64, error) {
	results, err := c.client.Elevation(ctx, &maps.ElevationRequest{
		Locations: []maps.LatLng{{Lat: p.Lat, Lng: p.Lng}},
	})
	if err != nil {
		return 0, fmt.Errorf("google elevation lookup failed: %w", err)
	}
	if len(results) == 0 {
		return 0, elevation.ErrNoData
	}
	return results[0].Elevation, nil
}
