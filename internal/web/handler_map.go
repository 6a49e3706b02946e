package web

import (
	"encoding/json"
	"net/http"

	"github.com/vbonduro/mapnote/internal/domain"
	"github.com/vbonduro/mapnote/internal/service"
)

type stateResponse struct {
	*service.MapState
	Warnings []string `json:"warnings,omitempty"`
}

// handleGetState always answers 200. Each part that fails to load falls back
// to its default and adds a warning; the parts that loaded are returned.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.LoadAll(r.Context())
	resp := stateResponse{MapState: state}
	for _, part := range service.FailedParts(err) {
		resp.Warnings = append(resp.Warnings, "saved "+part+" could not be loaded")
	}
	writeJSON(w, http.StatusOK, resp)
}

type viewportRequest struct {
	CenterLat *float64 `json:"centerLat"`
	CenterLng *float64 `json:"centerLng"`
	Zoom      *int     `json:"zoom"`
}

func (s *Server) handleSaveViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, "failed to save viewport")
		return
	}

	saved, err := s.service.SaveViewport(r.Context(), req.CenterLat, req.CenterLng, req.Zoom)
	if err != nil {
		s.respondError(w, r, err, "failed to save viewport")
		return
	}
	if !saved {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMarkers(w http.ResponseWriter, r *http.Request) {
	markers, err := s.service.ListMarkers(r.Context())
	if err != nil {
		s.respondError(w, r, err, "failed to list markers")
		return
	}
	writeJSON(w, http.StatusOK, markers)
}

type markerRequest struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
}

const maxTextLen = 2000

func (s *Server) handleCreateMarker(w http.ResponseWriter, r *http.Request) {
	var req markerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, "failed to create marker")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	if len(req.Title) > maxTextLen || len(req.Description) > maxTextLen {
		writeError(w, http.StatusBadRequest, "title or description too long")
		return
	}

	marker, err := s.service.AddMarker(r.Context(), &domain.Marker{
		Lat:         *req.Lat,
		Lng:         *req.Lng,
		Title:       req.Title,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		s.respondError(w, r, err, "failed to create marker")
		return
	}
	writeJSON(w, http.StatusCreated, marker)
}

func (s *Server) handleDeleteMarker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid marker id")
		return
	}

	if err := s.service.DeleteMarker(r.Context(), id); err != nil {
		s.respondError(w, r, err, "failed to delete marker")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListShapes(w http.ResponseWriter, r *http.Request) {
	shapes, err := s.service.ListShapes(r.Context())
	if err != nil {
		s.respondError(w, r, err, "failed to list shapes")
		return
	}
	writeJSON(w, http.StatusOK, shapes)
}

type shapeRequest struct {
	Data        json.RawMessage `json:"data"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
}

func (s *Server) handleCreateShape(w http.ResponseWriter, r *http.Request) {
	var req shapeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, "failed to create shape")
		return
	}
	if len(req.Title) > maxTextLen || len(req.Description) > maxTextLen {
		writeError(w, http.StatusBadRequest, "title or description too long")
		return
	}

	shape, err := s.service.AddShape(r.Context(), &domain.Shape{
		Data:        req.Data,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.respondError(w, r, err, "failed to create shape")
		return
	}
	writeJSON(w, http.StatusCreated, shape)
}

func (s *Server) handleDeleteShape(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid shape id")
		return
	}

	if err := s.service.DeleteShape(r.Context(), id); err != nil {
		s.respondError(w, r, err, "failed to delete shape")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
