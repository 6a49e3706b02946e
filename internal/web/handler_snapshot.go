package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vbonduro/mapnote/internal/logging"
	"github.com/vbonduro/mapnote/internal/service"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Export(r.Context())
	if err != nil {
		s.respondError(w, r, err, "failed to export map")
		return
	}

	filename := fmt.Sprintf("map-data-%s.json", snap.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	writeJSON(w, http.StatusOK, snap)
}

// handleImport accepts the snapshot either as the raw request body or as a
// multipart upload in the "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxSnapshotBytes)

	data, err := readImportPayload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "snapshot too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Import(r.Context(), data)
	if err != nil {
		s.respondError(w, r, err, "failed to import snapshot")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func readImportPayload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return data, nil
	}

	if err := r.ParseMultipartForm(service.MaxSnapshotBytes); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("snapshot file required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := s.service.ListSnapshots(r.Context())
	if err != nil {
		s.respondError(w, r, err, "failed to list snapshots")
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleArchiveSnapshot(w http.ResponseWriter, r *http.Request) {
	key, err := s.service.ArchiveSnapshot(r.Context())
	if err != nil {
		s.respondError(w, r, err, "failed to archive snapshot")
		return
	}
	w.Header().Set("Location", "/api/snapshots/"+key)
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	rc, err := s.service.OpenSnapshot(r.Context(), key)
	if err != nil {
		s.respondError(w, r, err, "failed to open snapshot")
		return
	}
	defer logging.SafeClose(rc, s.logger, "snapshot "+key)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, key))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("write snapshot failed", "key", key, "error", err)
	}
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSnapshot(r.Context(), r.PathValue("key")); err != nil {
		s.respondError(w, r, err, "failed to delete snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.RestoreSnapshot(r.Context(), r.PathValue("key"))
	if err != nil {
		s.respondError(w, r, err, "failed to restore snapshot")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
