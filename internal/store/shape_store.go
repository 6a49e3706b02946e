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

type ShapeStore struct {
	db querier
}

func NewShapeStore(db *sql.DB) *ShapeStore {
	return &ShapeStore{db: db}
}

const shapeColumns = `id, data, title, description, created_at`

func (s *ShapeStore) Create(ctx context.Context, sh *domain.Shape) (*domain.Shape, error) {
	createdAt := sh.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// An empty payload is written as NULL so the NOT NULL constraint rejects it.
	var data any
	if len(sh.Data) > 0 {
		data = string(sh.Data)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO shapes (data, title, description, created_at) VALUES (?, ?, ?, ?)
	`, data, sh.Title, sh.Description, createdAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create shape: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *ShapeStore) GetByID(ctx context.Context, id int64) (*domain.Shape, error) {
	sh, err := scanShape(s.db.QueryRowContext(ctx, `
		SELECT `+shapeColumns+` FROM shapes WHERE id = ?
	`, id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shape: %w", err)
	}

	return sh, nil
}

func (s *ShapeStore) List(ctx context.Context) ([]*domain.Shape, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shapeColumns+` FROM shapes ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shapes: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	shapes := []*domain.Shape{}
	for rows.Next() {
		sh, err := scanShape(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shape: %w", err)
		}
		shapes = append(shapes, sh)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}

	return shapes, nil
}

func (s *ShapeStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shapes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete shape: %w", err)
	}
	return nil
}

func scanShape(row scanner) (*domain.Shape, error) {
	sh := &domain.Shape{}
	var data string
	if err := row.Scan(&sh.ID, &data, &sh.Title, &sh.Description, &sh.CreatedAt); err != nil {
		return nil, err
	}
	sh.Data = []byte(data)
	return sh, nil
}
