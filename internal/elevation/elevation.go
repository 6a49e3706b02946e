package elevation

import (
	"context"
	"errors"

	"github.com/vbonduro/mapnote/internal/geometry"
)

var ErrNoData = errors.New("no elevation data for location")

// Lookup resolves the ground elevation, in meters, at a coordinate.
type Lookup interface {
	Elevation(ctx context.Context, p geometry.LatLng) (float64, error)
}
