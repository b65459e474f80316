package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"
)

// MemoryObject is a stored blob plus the content type it was written with.
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryStore is an in-process ObjectStore used for local development and
// tests. Its signed URLs point at a fake host and cannot be fetched.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]MemoryObject
	baseURL string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]MemoryObject),
		baseURL: "https://memory.local",
	}
}

func (m *MemoryStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("memory put %s failed: %w", key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("memory put %s: expected %d bytes, got %d", key, size, len(data))
	}
	m.mu.Lock()
	m.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (m *MemoryStore) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	q := url.Values{}
	q.Set("method", "PUT")
	q.Set("expires", fmt.Sprintf("%d", int64(ttl.Seconds())))
	if contentType != "" {
		q.Set("content-type", contentType)
	}
	return m.baseURL + "/" + escapeKey(key) + "?" + q.Encode(), nil
}

func (m *MemoryStore) PresignGet(ctx context.Context, key string, ttl time.Duration, opts GetOptions) (string, error) {
	q := url.Values{}
	q.Set("method", "GET")
	q.Set("expires", fmt.Sprintf("%d", int64(ttl.Seconds())))
	if opts.ResponseContentType != "" {
		q.Set("response-content-type", opts.ResponseContentType)
	}
	if opts.ResponseContentDisposition != "" {
		q.Set("response-content-disposition", opts.ResponseContentDisposition)
	}
	return m.baseURL + "/" + escapeKey(key) + "?" + q.Encode(), nil
}

// Object returns a copy of the stored object for key.
func (m *MemoryStore) Object(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return MemoryObject{}, false
	}
	return MemoryObject{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, true
}

// Keys lists stored keys in lexical order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeKey(key string) string {
	return (&url.URL{Path: key}).EscapedPath()
}

var _ ObjectStore = (*MemoryStore)(nil)
