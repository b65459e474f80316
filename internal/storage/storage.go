package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when the requested key does not exist in the store.
var ErrNotFound = errors.New("object not found")

// GetOptions overrides the response headers a signed read grant produces.
type GetOptions struct {
	ResponseContentType        string
	ResponseContentDisposition string
}

// ObjectStore captures the S3-compatible operations the gateway and the
// archive streamer need. Reads and writes are scoped to a single key.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration, opts GetOptions) (string, error)
}
