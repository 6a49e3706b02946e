// Package heatmap derives weighted density samples from markers and shapes.
package heatmap

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vbonduro/mapnote/internal/domain"
	"github.com/vbonduro/mapnote/internal/geometry"
)

// Relative weights applied to intensity per sample source.
const (
	MarkerWeight          = 1.0
	PolygonVertexWeight   = 0.8
	RectangleVertexWeight = 0.7
	CircleCenterWeight    = 0.9
	CirclePerimeterWeight = 0.6
	CentroidWeight        = 1.5

	// CirclePerimeterPoints is the number of synthetic samples spread around
	// each circle, 45 degrees apart.
	CirclePerimeterPoints = 8
)

// HeatSample is a single weighted point. It encodes to JSON as
// [lat, lng, weight], the tuple density layers consume.
type HeatSample struct {
	Lat    float64
	Lng    float64
	Weight float64
}

func (s HeatSample) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{s.Lat, s.Lng, s.Weight})
}

func (s *HeatSample) UnmarshalJSON(data []byte) error {
	var v [3]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.Lat, s.Lng, s.Weight = v[0], v[1], v[2]
	return nil
}

// Synthesize converts markers and shapes into heat samples. Samples appear in
// input order (markers, then shapes) followed by one centroid sample at the
// mean of every real input coordinate. Synthetic circle perimeter points do
// not move the centroid. Invalid coordinates and unrecognized or malformed
// shapes are skipped. Empty input yields an empty slice.
func Synthesize(markers []*domain.Marker, shapes []*domain.Shape, intensity float64) []HeatSample {
	samples := []HeatSample{}
	var c centroid

	for _, m := range markers {
		if m == nil {
			continue
		}
		p := geometry.LatLng{Lat: m.Lat, Lng: m.Lng}
		if !p.Valid() {
			continue
		}
		c.add(p)
		samples = append(samples, sample(p, intensity*MarkerWeight))
	}

	for _, sh := range shapes {
		if sh == nil {
			continue
		}
		f, err := geometry.Parse(sh.Data)
		if err != nil {
			continue
		}

		switch f.Kind() {
		case geometry.KindPolygon:
			samples = appendRing(samples, &c, f.Ring(), intensity*PolygonVertexWeight)
		case geometry.KindRectangle:
			samples = appendRing(samples, &c, f.Ring(), intensity*RectangleVertexWeight)
		case geometry.KindCircle:
			circle, _ := f.Circle()
			c.add(circle.Center)
			samples = append(samples, sample(circle.Center, intensity*CircleCenterWeight))
			for _, p := range geometry.CirclePerimeter(circle.Center, circle.Radius, CirclePerimeterPoints) {
				samples = append(samples, sample(p, intensity*CirclePerimeterWeight))
			}
		}
	}

	if mean, ok := c.mean(); ok {
		samples = append(samples, sample(mean, intensity*CentroidWeight))
	}

	return samples
}

func appendRing(samples []HeatSample, c *centroid, ring []geometry.LatLng, weight float64) []HeatSample {
	for _, p := range ring {
		c.add(p)
		samples = append(samples, sample(p, weight))
	}
	return samples
}

func sample(p geometry.LatLng, weight float64) HeatSample {
	return HeatSample{Lat: p.Lat, Lng: p.Lng, Weight: weight}
}

type centroid struct {
	lat, lng float64
	n        int
}

func (c *centroid) add(p geometry.LatLng) {
	c.lat += p.Lat
	c.lng += p.Lng
	c.n++
}

func (c *centroid) mean() (geometry.LatLng, bool) {
	if c.n == 0 {
		return geometry.LatLng{}, false
	}
	return geometry.LatLng{Lat: c.lat / float64(c.n), Lng: c.lng / float64(c.n)}, true
}

var ErrInvalidSettings = errors.New("invalid heatmap settings")

// Settings controls how the client renders the density layer. Only Intensity
// affects synthesized weights.
type Settings struct {
	Intensity float64 `json:"intensity" yaml:"intensity"`
	Radius    int     `json:"radius" yaml:"radius"`
	Blur      int     `json:"blur" yaml:"blur"`
	MaxZoom   int     `json:"maxZoom" yaml:"max_zoom"`
}

func DefaultSettings() Settings {
	return Settings{Intensity: 1.0, Radius: 25, Blur: 15, MaxZoom: 6}
}

func (s Settings) Validate() error {
	if !(s.Intensity > 0) {
		return fmt.Errorf("%w: intensity must be positive, got %v", ErrInvalidSettings, s.Intensity)
	}
	if s.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %d", ErrInvalidSettings, s.Radius)
	}
	if s.Blur < 0 {
		return fmt.Errorf("%w: blur must not be negative, got %d", ErrInvalidSettings, s.Blur)
	}
	if s.MaxZoom < 0 {
		return fmt.Errorf("%w: maxZoom must not be negative, got %d", ErrInvalidSettings, s.MaxZoom)
	}
	return nil
}
