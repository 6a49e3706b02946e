package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vbonduro/mapnote/internal/domain"
)

type ViewportStore struct {
	db querier
}

func NewViewportStore(db *sql.DB) *ViewportStore {
	return &ViewportStore{db: db}
}

// Get returns the saved viewport, or nil if none has been saved yet.
func (s *ViewportStore) Get(ctx context.Context) (*domain.Viewport, error) {
	vp := &domain.Viewport{}
	err := s.db.QueryRowContext(ctx, `
		SELECT center_lat, center_lng, zoom, updated_at FROM map_state WHERE id = ?
	`, domain.ViewportID).Scan(&vp.CenterLat, &vp.CenterLng, &vp.Zoom, &vp.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get viewport: %w", err)
	}

	return vp, nil
}

// Save overwrites the single viewport row.
func (s *ViewportStore) Save(ctx context.Context, lat, lng float64, zoom int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO map_state (id, center_lat, center_lng, zoom, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			center_lat = excluded.center_lat,
			center_lng = excluded.center_lng,
			zoom       = excluded.zoom,
			updated_at = excluded.updated_at
	`, domain.ViewportID, lat, lng, zoom)
	if err != nil {
		return fmt.Errorf("failed to save viewport: %w", err)
	}
	return nil
}
