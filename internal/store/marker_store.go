package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/mapnote/internal/domain"
)

type MarkerStore struct {
	db querier
}

func NewMarkerStore(db *sql.DB) *MarkerStore {
	return &MarkerStore{db: db}
}

const markerColumns = `id, lat, lng, title, description, color, created_at`

// Create inserts m and returns the stored record with its assigned ID. A zero
// CreatedAt is stamped with the current time.
func (s *MarkerStore) Create(ctx context.Context, m *domain.Marker) (*domain.Marker, error) {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO markers (lat, lng, title, description, color, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`, m.Lat, m.Lng, m.Title, m.Description, m.Color, createdAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create marker: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *MarkerStore) GetByID(ctx context.Context, id int64) (*domain.Marker, error) {
	m, err := scanMarker(s.db.QueryRowContext(ctx, `
		SELECT `+markerColumns+` FROM markers WHERE id = ?
	`, id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get marker: %w", err)
	}

	return m, nil
}

// List returns every marker in insertion order.
func (s *MarkerStore) List(ctx context.Context) ([]*domain.Marker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+markerColumns+` FROM markers ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	markers := []*domain.Marker{}
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		markers = append(markers, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating markers: %w", err)
	}

	return markers, nil
}

// Delete removes the marker with the given id. Deleting an id that does not
// exist is not an error.
func (s *MarkerStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM markers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

func scanMarker(row scanner) (*domain.Marker, error) {
	m := &domain.Marker{}
	if err := row.Scan(&m.ID, &m.Lat, &m.Lng, &m.Title, &m.Description, &m.Color, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}
