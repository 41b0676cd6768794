// Package store persists published forms, builder drafts and submissions.
// Forms and drafts sit on a key-value BlobStore so the backing database can
// change without touching the builder or the renderer.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrEmptyForm       = errors.New("form has no fields")
)

type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
