// Package geometry interprets the GeoJSON-like feature payloads stored with
// shapes and provides the small amount of geodesy the rest of the service
// needs.
package geometry

import (
	"math"

	"github.com/golang/geo/s2"
)

const (
	// MetersPerDegreeLat is the equirectangular approximation used for
	// synthesized circle perimeters.
	MetersPerDegreeLat = 111320.0

	EarthRadiusMeters = 6371000.0

	// DefaultCircleRadius applies when a circle carries a radius property
	// that is not a positive number.
	DefaultCircleRadius = 50.0
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within WGS84 bounds.
func (p LatLng) Valid() bool {
	return finite(p.Lat) && finite(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lng >= -180 && p.Lng <= 180
}

// NormalizeLng wraps lng into [-180, 180). Map clients report unwrapped
// longitudes once the view crosses the antimeridian. Non-finite input is
// returned unchanged.
func NormalizeLng(lng float64) float64 {
	if !finite(lng) || (lng >= -180 && lng < 180) {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

// Normalized returns p with its longitude wrapped into [-180, 180).
func (p LatLng) Normalized() LatLng {
	return LatLng{Lat: p.Lat, Lng: NormalizeLng(p.Lng)}
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// CirclePerimeter returns n points evenly spaced around center at radius
// meters. Angle 0 points north and angles advance clockwise. Longitude
// offsets are widened by 1/cos(lat) to correct for meridian convergence.
func CirclePerimeter(center LatLng, radius float64, n int) []LatLng {
	if n <= 0 {
		return nil
	}

	dLat := radius / MetersPerDegreeLat
	dLng := radius / (MetersPerDegreeLat * math.Cos(center.Lat*math.Pi/180))

	points := make([]LatLng, 0, n)
	for i := 0; i < n; i++ {
		angle := float64(i) / float64(n) * 2 * math.Pi
		points = append(points, LatLng{
			Lat: center.Lat + dLat*math.Cos(angle),
			Lng: center.Lng + dLng*math.Sin(angle),
		})
	}
	return points
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
