package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/tutorstore/internal/metrics"
	"github.com/andresuchdata/tutorstore/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	DefaultFolder   = "uploads"
	DefaultGrantTTL = time.Hour

	fallbackDisplayName = "downloaded-file"
)

// Config holds the deployment settings the gateway signs and builds URLs with.
type Config struct {
	Bucket           string
	Region           string
	CanonicalBaseURL string
	GrantTTL         time.Duration
	HasCredentials   bool
}

// UploadGrant is a time-limited write permission for exactly one key.
type UploadGrant struct {
	GrantURL     string `json:"presignedUrl"`
	Key          string `json:"key"`
	CanonicalURL string `json:"url"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type UploadResult struct {
	Key          string `json:"key"`
	CanonicalURL string `json:"url"`
}

type DeleteResult struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
}

// Gateway mediates every interaction with the object store: key assignment,
// signed grants, proxied writes and deletes. It never retries.
type Gateway struct {
	store   storage.ObjectStore
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Gateway)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock replaces time.Now for key assignment.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func New(store storage.ObjectStore, cfg Config, opts ...Option) *Gateway {
	if cfg.GrantTTL <= 0 {
		cfg.GrantTTL = DefaultGrantTTL
	}
	g := &Gateway{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ready returns ErrConfiguration when the store cannot be used.
func (g *Gateway) Ready() error {
	if g.store == nil || !g.cfg.HasCredentials || g.cfg.Bucket == "" {
		return ErrConfiguration
	}
	return nil
}

// NewKey assigns a storage key for fileName under folder.
func (g *Gateway) NewKey(folder, fileName string) string {
	if folder == "" {
		folder = DefaultFolder
	}
	return fmt.Sprintf("%s/%d-%s", folder, g.now().UnixMilli(), fileName)
}

// CanonicalURL is the permanent address of key. It performs no I/O and does
// not check that the object exists.
func (g *Gateway) CanonicalURL(key string) string {
	if base := strings.TrimSuffix(g.cfg.CanonicalBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", g.cfg.Bucket, g.cfg.Region, key)
}

// IssueUploadGrant assigns a key and signs a write grant limited to that key
// and contentType.
func (g *Gateway) IssueUploadGrant(ctx context.Context, fileName, contentType, folder string) (UploadGrant, error) {
	if fileName == "" || contentType == "" {
		return UploadGrant{}, validationError("fileName and fileType are required")
	}
	if err := g.Ready(); err != nil {
		return UploadGrant{}, err
	}

	start := time.Now()
	key := g.NewKey(folder, fileName)
	grantURL, err := g.store.PresignPut(ctx, key, contentType, g.cfg.GrantTTL)
	g.metrics.RecordOperation("presign_put", err, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to sign upload grant")
		return UploadGrant{}, &UpstreamError{Op: "presign put", Key: key, Err: err}
	}

	return UploadGrant{
		GrantURL:     grantURL,
		Key:          key,
		CanonicalURL: g.CanonicalURL(key),
		ExpiresIn:    int64(g.cfg.GrantTTL.Seconds()),
	}, nil
}

// ProxyUpload writes body to a freshly assigned key.
func (g *Gateway) ProxyUpload(ctx context.Context, body []byte, fileName, contentType, folder string) (UploadResult, error) {
	if fileName == "" {
		return UploadResult{}, validationError("No file uploaded")
	}
	if err := g.Ready(); err != nil {
		return UploadResult{}, err
	}

	start := time.Now()
	key := g.NewKey(folder, fileName)
	err := g.store.PutObject(ctx, key, bytes.NewReader(body), int64(len(body)), contentType)
	g.metrics.RecordOperation("put", err, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("proxy upload failed")
		return UploadResult{}, &UpstreamError{Op: "put", Key: key, Err: err}
	}
	g.metrics.RecordUpload(int64(len(body)))

	log.Info().Str("key", key).Int("bytes", len(body)).Msg("file uploaded")
	return UploadResult{Key: key, CanonicalURL: g.CanonicalURL(key)}, nil
}

// Delete removes key. Deleting a key that does not exist succeeds.
func (g *Gateway) Delete(ctx context.Context, key string) (DeleteResult, error) {
	if key == "" {
		return DeleteResult{}, validationError("fileKey is required")
	}
	if err := g.Ready(); err != nil {
		return DeleteResult{}, err
	}

	start := time.Now()
	err := g.store.DeleteObject(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	g.metrics.RecordOperation("delete", err, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("delete failed")
		return DeleteResult{}, &UpstreamError{Op: "delete", Key: key, Err: err}
	}

	log.Info().Str("key", key).Msg("file deleted")
	return DeleteResult{Success: true, Key: key}, nil
}

// IssueDownloadGrant signs a read grant for key. In preview mode the response
// carries a MIME type guessed from the display name and renders inline;
// otherwise it is an opaque attachment. The key is not checked for existence.
func (g *Gateway) IssueDownloadGrant(ctx context.Context, key, displayName string, preview bool) (string, error) {
	if key == "" {
		return "", validationError("fileKey is required")
	}
	if err := g.Ready(); err != nil {
		return "", err
	}

	name := DisplayName(key, displayName)
	opts := storage.GetOptions{
		ResponseContentType:        defaultContentType,
		ResponseContentDisposition: ContentDisposition(preview, name),
	}
	if preview {
		opts.ResponseContentType = PreviewContentType(name)
	}

	start := time.Now()
	grantURL, err := g.store.PresignGet(ctx, key, g.cfg.GrantTTL, opts)
	g.metrics.RecordOperation("presign_get", err, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to sign download grant")
		return "", &UpstreamError{Op: "presign get", Key: key, Err: err}
	}

	log.Debug().Str("key", key).Bool("preview", preview).Str("content_type", opts.ResponseContentType).Msg("download grant issued")
	return grantURL, nil
}

// DisplayName picks the file name shown to the downloader: the explicit
// name, the last key segment, or a fixed fallback.
func DisplayName(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		key = key[idx+1:]
	}
	if key != "" {
		return key
	}
	return fallbackDisplayName
}
