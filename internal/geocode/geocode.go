package geocode

import (
	"context"
	"errors"
)

var ErrNoResults = errors.New("no places found")

// Place is a single search hit.
type Place struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"displayName"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
}

type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}
