package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/mapnote/internal/domain"
	"github.com/vbonduro/mapnote/internal/logging"
)

// SnapshotStore writes imported snapshots. Markers and shapes are inserted in
// a single transaction so an import is applied completely or not at all.
type SnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSnapshotStore(db *sql.DB, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

// Import inserts markers and shapes with freshly assigned IDs and returns the
// stored records in input order.
func (s *SnapshotStore) Import(ctx context.Context, markers []*domain.Marker, shapes []*domain.Shape) ([]*domain.Marker, []*domain.Shape, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer logging.SafeRollback(tx, s.logger, "import snapshot")

	markerStore := &MarkerStore{db: tx}
	shapeStore := &ShapeStore{db: tx}

	storedMarkers := make([]*domain.Marker, 0, len(markers))
	for i, m := range markers {
		stored, err := markerStore.Create(ctx, m)
		if err != nil {
			return nil, nil, fmt.Errorf("marker %d: %w", i, err)
		}
		storedMarkers = append(storedMarkers, stored)
	}

	storedShapes := make([]*domain.Shape, 0, len(shapes))
	for i, sh := range shapes {
		stored, err := shapeStore.Create(ctx, sh)
		if err != nil {
			return nil, nil, fmt.Errorf("shape %d: %w", i, err)
		}
		storedShapes = append(storedShapes, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit import: %w", err)
	}

	return storedMarkers, storedShapes, nil
}
