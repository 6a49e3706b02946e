package geometry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

var ErrInvalidFeature = errors.New("invalid feature")

type Kind int

const (
	KindUnknown Kind = iota
	KindPolygon
	KindRectangle
	KindCircle
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "polygon"
	case KindRectangle:
		return "rectangle"
	case KindCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// Feature is a loosely typed GeoJSON feature. Coordinates stay raw so that
// payloads with non-standard geometry types ("Circle", "Rectangle") or
// partially malformed points still decode.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Parse decodes a feature payload. Only payloads that are not a JSON object
// are rejected; missing geometry or coordinates are left for the accessors to
// treat as empty.
func Parse(raw []byte) (*Feature, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidFeature)
	}

	f := &Feature{}
	if err := json.Unmarshal(trimmed, f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	return f, nil
}

func (f *Feature) Kind() Kind {
	if _, ok := f.Circle(); ok {
		return KindCircle
	}
	if f.Geometry == nil {
		return KindUnknown
	}

	switch f.Geometry.Type {
	case "Rectangle":
		return KindRectangle
	case "Polygon":
		if shape, _ := f.Properties["shape"].(string); strings.EqualFold(shape, "rectangle") {
			return KindRectangle
		}
		return KindPolygon
	default:
		return KindUnknown
	}
}

// Ring returns the valid vertices of the outer ring in their stored order.
func (f *Feature) Ring() []LatLng {
	if f.Geometry == nil || len(f.Geometry.Coordinates) == 0 {
		return nil
	}

	var rings []json.RawMessage
	if err := json.Unmarshal(f.Geometry.Coordinates, &rings); err != nil || len(rings) == 0 {
		return nil
	}

	var points []json.RawMessage
	if err := json.Unmarshal(rings[0], &points); err != nil {
		return nil
	}

	ring := make([]LatLng, 0, len(points))
	for _, raw := range points {
		if p, ok := decodePosition(raw); ok {
			ring = append(ring, p)
		}
	}
	return ring
}

// Circle is a center and radius in meters.
type Circle struct {
	Center LatLng
	Radius float64
}

// Circle reports the circle described by the feature. A feature is a circle
// when it has a radius property and a center, taken from the "center"
// property or from Point/Circle geometry coordinates.
func (f *Feature) Circle() (Circle, bool) {
	rawRadius, hasRadius := f.Properties["radius"]
	if !hasRadius {
		return Circle{}, false
	}

	center, ok := f.center()
	if !ok {
		return Circle{}, false
	}

	radius, ok := rawRadius.(float64)
	if !ok || !finite(radius) || radius <= 0 {
		radius = DefaultCircleRadius
	}
	return Circle{Center: center, Radius: radius}, true
}

func (f *Feature) center() (LatLng, bool) {
	if c, ok := f.Properties["center"].([]any); ok {
		return positionFromAny(c)
	}
	if f.Geometry == nil {
		return LatLng{}, false
	}
	if f.Geometry.Type != "Point" && f.Geometry.Type != "Circle" {
		return LatLng{}, false
	}
	return decodePosition(f.Geometry.Coordinates)
}

// Area returns the feature's area in square meters. An explicit "area"
// property wins; circles use pi r^2 and rings use the spherical area.
func (f *Feature) Area() float64 {
	if a, ok := f.Properties["area"].(float64); ok && finite(a) && a > 0 {
		return a
	}

	switch f.Kind() {
	case KindCircle:
		c, _ := f.Circle()
		return math.Pi * c.Radius * c.Radius
	case KindPolygon, KindRectangle:
		return ringArea(f.Ring())
	default:
		return 0
	}
}

func ringArea(points []LatLng) float64 {
	if len(points) < 3 {
		return 0
	}

	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, orb.Point{p.Lng, p.Lat})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return math.Abs(orbgeo.Area(ring))
}

// decodePosition reads a GeoJSON [lng, lat, ...] position.
func decodePosition(raw json.RawMessage) (LatLng, bool) {
	var pos []any
	if err := json.Unmarshal(raw, &pos); err != nil {
		return LatLng{}, false
	}
	return positionFromAny(pos)
}

func positionFromAny(pos []any) (LatLng, bool) {
	if len(pos) < 2 {
		return LatLng{}, false
	}
	lng, ok1 := pos[0].(float64)
	lat, ok2 := pos[1].(float64)
	if !ok1 || !ok2 {
		return LatLng{}, false
	}

	p := LatLng{Lat: lat, Lng: lng}
	if !p.Valid() {
		return LatLng{}, false
	}
	return p, true
}
