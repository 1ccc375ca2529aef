// Package storage keeps uploaded files on local disk or in an
// S3-compatible bucket behind one interface.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotExist = errors.New("object does not exist")

// Info describes a stored object.
type Info struct {
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store is implemented by every storage backend. Keys are slash separated
// paths such as "uploads/<user>/<file>".
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	Stat(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	HealthCheck(ctx context.Context) error
}
