package snapshotstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidKey is returned for keys that would resolve outside the store.
	ErrInvalidKey = errors.New("invalid snapshot key")
)

// Info describes an archived snapshot.
type Info struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// SnapshotStore archives exported snapshot documents as opaque blobs.
type SnapshotStore interface {
	Save(ctx context.Context, r io.Reader) (key string, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, key string) error
}
