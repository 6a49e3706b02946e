// Package weather proxies OpenWeatherMap overlay tiles so the API key never
// reaches the browser.
package weather

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnknownKind = errors.New("unknown weather kind")
	ErrInvalidTile = errors.New("invalid tile coordinates")
)

type Kind string

const (
	Temperature   Kind = "temperature"
	Precipitation Kind = "precipitation"
	Pressure      Kind = "pressure"
	Clouds        Kind = "clouds"
	Wind          Kind = "wind"
	Snow          Kind = "snow"
)

// layers maps each kind to its OpenWeatherMap tile layer name.
var layers = map[Kind]string{
	Temperature:   "temp",
	Precipitation: "precipitation",
	Pressure:      "pressure",
	Clouds:        "clouds",
	Wind:          "wind",
	Snow:          "snow",
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := layers[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

func (k Kind) Layer() string {
	return layers[k]
}

// Kinds returns every supported kind in alphabetical order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(layers))
	for k := range layers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Settings describes how the overlay is rendered and refreshed.
type Settings struct {
	Kind           Kind          `json:"kind" yaml:"kind"`
	Opacity        float64       `json:"opacity" yaml:"opacity"`
	UpdateInterval time.Duration `json:"updateInterval" yaml:"update_interval"`
}

func DefaultSettings() Settings {
	return Settings{
		Kind:           Temperature,
		Opacity:        0.7,
		UpdateInterval: 30 * time.Minute,
	}
}

func (s Settings) Validate() error {
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return err
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		return fmt.Errorf("weather opacity must be within [0, 1], got %v", s.Opacity)
	}
	if s.UpdateInterval <= 0 {
		return fmt.Errorf("weather update interval must be positive, got %s", s.UpdateInterval)
	}
	return nil
}
