package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/mapnote/internal/geometry"
	"github.com/vbonduro/mapnote/internal/routing"
	"github.com/vbonduro/mapnote/internal/weather"
)

type distanceResponse struct {
	From               geometry.LatLng `json:"from"`
	To                 geometry.LatLng `json:"to"`
	StraightLineMeters float64         `json:"straightLineMeters"`
	Route              *routing.Route  `json:"route,omitempty"`
	RouteError         string          `json:"routeError,omitempty"`
}

// handleDistance always reports the great-circle distance. The driving route
// is added when a router is configured; a routing failure is reported in
// routeError without failing the request.
func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseLatLng(q.Get("from"))
	if err != nil {
		s.respondError(w, r, err, "failed to measure distance")
		return
	}
	to, err := parseLatLng(q.Get("to"))
	if err != nil {
		s.respondError(w, r, err, "failed to measure distance")
		return
	}

	resp := distanceResponse{
		From:               from,
		To:                 to,
		StraightLineMeters: geometry.Distance(from, to),
	}

	if s.providers.Router != nil {
		route, err := s.providers.Router.Route(r.Context(), from, to)
		if err != nil {
			s.logger.Warn("route lookup failed", "error", err)
			resp.RouteError = "route unavailable"
		} else {
			resp.Route = route
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

const maxGeocodeLimit = 20

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.providers.Geocoder == nil {
		s.respondError(w, r, fmt.Errorf("geocoding: %w", errNotConfigured), "")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxGeocodeLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxGeocodeLimit))
			return
		}
		limit = n
	}

	places, err := s.providers.Geocoder.Search(r.Context(), query, limit)
	if err != nil {
		s.respondProviderError(w, r, err, "geocoding failed")
		return
	}
	writeJSON(w, http.StatusOK, places)
}

func (s *Server) handleElevation(w http.ResponseWriter, r *http.Request) {
	if s.providers.Elevation == nil {
		s.respondError(w, r, fmt.Errorf("elevation: %w", errNotConfigured), "")
		return
	}

	p, err := parseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lng"))
	if err != nil {
		s.respondError(w, r, err, "elevation lookup failed")
		return
	}

	meters, err := s.providers.Elevation.Elevation(r.Context(), p)
	if err != nil {
		s.respondProviderError(w, r, err, "elevation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lat":             p.Lat,
		"lng":             p.Lng,
		"elevationMeters": meters,
	})
}

type weatherSettingsResponse struct {
	weather.Settings
	Kinds   []weather.Kind `json:"kinds"`
	Enabled bool           `json:"enabled"`
}

func (s *Server) handleWeatherSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, weatherSettingsResponse{
		Settings: s.weather,
		Kinds:    weather.Kinds(),
		Enabled:  s.providers.Weather != nil,
	})
}

func (s *Server) handleWeatherTile(w http.ResponseWriter, r *http.Request) {
	if s.providers.Weather == nil {
		s.respondError(w, r, fmt.Errorf("weather: %w", errNotConfigured), "")
		return
	}

	kind, err := weather.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.respondError(w, r, err, "weather tile failed")
		return
	}

	coords := [3]int{}
	for i, name := range []string{"z", "x", "y"} {
		v := strings.TrimSuffix(r.PathValue(name), ".png")
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid tile %s %q", name, v))
			return
		}
		coords[i] = n
	}

	tile, err := s.providers.Weather.Tile(r.Context(), kind, coords[0], coords[1], coords[2])
	if err != nil {
		s.respondProviderError(w, r, err, "weather tile failed")
		return
	}

	w.Header().Set("Content-Type", tile.ContentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.weather.UpdateInterval.Seconds())))
	if _, err := w.Write(tile.Data); err != nil {
		s.logger.Error("write weather tile failed", "error", err)
	}
}

// respondProviderError treats unclassified errors from an upstream service
// as a bad gateway rather than an internal failure.
func (s *Server) respondProviderError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if statusFor(err) != http.StatusInternalServerError {
		s.respondError(w, r, err, msg)
		return
	}
	s.logger.Warn(msg, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadGateway, msg)
}
