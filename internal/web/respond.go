package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/mapnote/internal/elevation"
	"github.com/vbonduro/mapnote/internal/geocode"
	"github.com/vbonduro/mapnote/internal/geometry"
	"github.com/vbonduro/mapnote/internal/routing"
	"github.com/vbonduro/mapnote/internal/service"
	"github.com/vbonduro/mapnote/internal/snapshotstore"
	"github.com/vbonduro/mapnote/internal/weather"
)

const maxJSONBody = 1 << 20

var errNotConfigured = errors.New("provider not configured")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps err to a status code. Internal errors are logged and
// replaced with fallback; anything else is echoed to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, weather.ErrUnknownKind),
		errors.Is(err, weather.ErrInvalidTile),
		errors.Is(err, snapshotstore.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, snapshotstore.ErrNotFound),
		errors.Is(err, geocode.ErrNoResults),
		errors.Is(err, routing.ErrNoRoute),
		errors.Is(err, elevation.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, service.ErrArchiveDisabled),
		errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

// parseID extracts the {id} path variable and returns it as int64.
func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseLatLng reads a "lat,lng" pair.
func parseLatLng(s string) (geometry.LatLng, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return geometry.LatLng{}, fmt.Errorf("%w: expected lat,lng but got %q", service.ErrInvalidInput, s)
	}
	return parseCoordinates(latStr, lngStr)
}

func parseCoordinates(latStr, lngStr string) (geometry.LatLng, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geometry.LatLng{}, fmt.Errorf("%w: invalid latitude %q", service.ErrInvalidInput, latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return geometry.LatLng{}, fmt.Errorf("%w: invalid longitude %q", service.ErrInvalidInput, lngStr)
	}
	p := geometry.LatLng{Lat: lat, Lng: lng}.Normalized()
	if !p.Valid() {
		return geometry.LatLng{}, fmt.Errorf("%w: coordinate %v,%v out of range", service.ErrInvalidInput, lat, lng)
	}
	return p, nil
}
