package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vbonduro/mapnote/internal/domain"
	"github.com/vbonduro/mapnote/internal/geometry"
	"github.com/vbonduro/mapnote/internal/logging"
	"github.com/vbonduro/mapnote/internal/snapshotstore"
)

// MaxSnapshotBytes caps import payloads and archived snapshots.
const MaxSnapshotBytes = 10 << 20

var ErrArchiveDisabled = errors.New("snapshot archive is not configured")

// Snapshot is the portable export document.
type Snapshot struct {
	Markers    []*domain.Marker `json:"markers"`
	Shapes     []*domain.Shape  `json:"shapes"`
	Statistics *Statistics      `json:"statistics"`
	ExportedAt time.Time        `json:"exportedAt"`
}

type ImportResult struct {
	Markers []*domain.Marker `json:"markers"`
	Shapes  []*domain.Shape  `json:"shapes"`
}

// importDocument mirrors Snapshot with optional fields so absent values can
// be told apart from zero values.
type importDocument struct {
	Markers *[]importMarker `json:"markers"`
	Shapes  *[]importShape  `json:"shapes"`
}

type importMarker struct {
	Lat         *float64   `json:"lat"`
	Lng         *float64   `json:"lng"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Color       string     `json:"color"`
	CreatedAt   *time.Time `json:"createdAt"`
}

type importShape struct {
	Data        json.RawMessage `json:"data"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CreatedAt   *time.Time      `json:"createdAt"`
}

func (s *MapService) Export(ctx context.Context) (*Snapshot, error) {
	markers, shapes, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := computeStatistics(markers, shapes)
	stats.ElevationMeters = s.viewportElevation(ctx)
	now := s.now().UTC()
	stats.LastUpdated = now

	return &Snapshot{
		Markers:    markers,
		Shapes:     shapes,
		Statistics: stats,
		ExportedAt: now,
	}, nil
}

// Import validates a snapshot document and stores its markers and shapes.
// Records receive new IDs; every other field is kept. Nothing is written
// unless the whole document is valid.
func (s *MapService) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	markers, shapes, err := parseImport(data)
	if err != nil {
		return nil, err
	}

	storedMarkers, storedShapes, err := s.importStore.Import(ctx, markers, shapes)
	if err != nil {
		return nil, fmt.Errorf("failed to import snapshot: %w", err)
	}

	s.logger.Info("snapshot imported", "markers", len(storedMarkers), "shapes", len(storedShapes))
	return &ImportResult{Markers: storedMarkers, Shapes: storedShapes}, nil
}

func parseImport(data []byte) ([]*domain.Marker, []*domain.Shape, error) {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: snapshot is not valid JSON: %v", ErrInvalidInput, err)
	}
	if doc.Markers == nil && doc.Shapes == nil {
		return nil, nil, fmt.Errorf("%w: snapshot has neither markers nor shapes", ErrInvalidInput)
	}

	var markers []*domain.Marker
	if doc.Markers != nil {
		markers = make([]*domain.Marker, 0, len(*doc.Markers))
		for i, im := range *doc.Markers {
			if im.Lat == nil || im.Lng == nil {
				return nil, nil, fmt.Errorf("%w: marker %d is missing coordinates", ErrInvalidInput, i)
			}
			m := &domain.Marker{
				Lat:         *im.Lat,
				Lng:         *im.Lng,
				Title:       im.Title,
				Description: im.Description,
				Color:       im.Color,
			}
			if im.CreatedAt != nil {
				m.CreatedAt = *im.CreatedAt
			}
			if err := validateMarker(m); err != nil {
				return nil, nil, fmt.Errorf("marker %d: %w", i, err)
			}
			markers = append(markers, m)
		}
	}

	var shapes []*domain.Shape
	if doc.Shapes != nil {
		shapes = make([]*domain.Shape, 0, len(*doc.Shapes))
		for i, is := range *doc.Shapes {
			if _, err := geometry.Parse(is.Data); err != nil {
				return nil, nil, fmt.Errorf("%w: shape %d: %v", ErrInvalidInput, i, err)
			}
			sh := &domain.Shape{
				Data:        is.Data,
				Title:       is.Title,
				Description: is.Description,
			}
			if is.CreatedAt != nil {
				sh.CreatedAt = *is.CreatedAt
			}
			shapes = append(shapes, sh)
		}
	}

	return markers, shapes, nil
}

// ArchiveSnapshot exports the current state into the snapshot archive and
// returns its key.
func (s *MapService) ArchiveSnapshot(ctx context.Context) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}

	snap, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key, err := s.archive.Save(ctx, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to archive snapshot: %w", err)
	}
	s.logger.Info("snapshot archived", "key", key, "bytes", len(payload))
	return key, nil
}

func (s *MapService) ListSnapshots(ctx context.Context) ([]snapshotstore.Info, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.List(ctx)
}

// OpenSnapshot returns the archived document for key. The caller closes it.
func (s *MapService) OpenSnapshot(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.Get(ctx, key)
}

func (s *MapService) DeleteSnapshot(ctx context.Context, key string) error {
	if s.archive == nil {
		return ErrArchiveDisabled
	}
	return s.archive.Delete(ctx, key)
}

// RestoreSnapshot imports an archived snapshot on top of the current state.
func (s *MapService) RestoreSnapshot(ctx context.Context, key string) (*ImportResult, error) {
	rc, err := s.OpenSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	defer logging.SafeClose(rc, s.logger, "archived snapshot")

	data, err := io.ReadAll(io.LimitReader(rc, MaxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return s.Import(ctx, data)
}
