package routing

import (
	"context"
	"errors"

	"github.com/vbonduro/mapnote/internal/geometry"
)

var ErrNoRoute = errors.New("no route found")

// Route is a driving route between two points. Path is the decoded route
// geometry in travel order.
type Route struct {
	DistanceMeters  float64           `json:"distanceMeters"`
	DurationSeconds float64           `json:"durationSeconds"`
	Path            []geometry.LatLng `json:"path"`
}

type Router interface {
	Route(ctx context.Context, from, to geometry.LatLng) (*Route, error)
}
