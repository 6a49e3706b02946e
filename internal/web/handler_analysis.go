package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vbonduro/mapnote/internal/heatmap"
	"github.com/vbonduro/mapnote/internal/service"
)

type heatmapResponse struct {
	Settings heatmap.Settings     `json:"settings"`
	Samples  []heatmap.HeatSample `json:"samples"`
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	settings, err := heatmapSettings(r.URL.Query(), s.heatmap)
	if err != nil {
		s.respondError(w, r, err, "failed to build heatmap")
		return
	}

	samples, err := s.service.Heatmap(r.Context(), settings)
	if err != nil {
		s.respondError(w, r, err, "failed to build heatmap")
		return
	}
	writeJSON(w, http.StatusOK, heatmapResponse{Settings: settings, Samples: samples})
}

// heatmapSettings overlays query parameters on the configured defaults.
func heatmapSettings(q url.Values, defaults heatmap.Settings) (heatmap.Settings, error) {
	settings := defaults

	if v := q.Get("intensity"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return settings, fmt.Errorf("%w: invalid intensity %q", service.ErrInvalidInput, v)
		}
		settings.Intensity = f
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"radius", &settings.Radius},
		{"blur", &settings.Blur},
		{"maxZoom", &settings.MaxZoom},
	}
	for _, p := range ints {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return settings, fmt.Errorf("%w: invalid %s %q", service.ErrInvalidInput, p.name, v)
		}
		*p.dst = n
	}
	return settings, nil
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Statistics(r.Context())
	if err != nil {
		s.respondError(w, r, err, "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
