package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/andresuchdata/tutorstore/internal/metrics"
	"github.com/andresuchdata/tutorstore/internal/storage"
	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *storage.MemoryStore, objects map[string]string) {
	t.Helper()
	for k, v := range objects {
		require.NoError(t, store.PutObject(context.Background(), k, strings.NewReader(v), int64(len(v)), "text/plain"))
	}
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(body)
	}
	return out
}

func TestBuildArchive(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, map[string]string{
		"uploads/1-a.txt": "alpha",
		"uploads/2-b.txt": strings.Repeat("b", 4096),
	})
	m := metrics.New(prometheus.NewRegistry())
	s := NewStreamer(store, m)

	var buf bytes.Buffer
	res, err := s.BuildArchive(context.Background(), []string{"uploads/1-a.txt", "uploads/2-b.txt"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/1-a.txt", "uploads/2-b.txt"}, res.Succeeded)
	assert.Empty(t, res.Failed)

	entries := readArchive(t, buf.Bytes())
	assert.Equal(t, "alpha", entries["1-a.txt"])
	assert.Len(t, entries["2-b.txt"], 4096)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ArchiveEntries.WithLabelValues("added")))
}

func TestBuildArchive_SkipsMissingKeys(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, map[string]string{"uploads/1-a.txt": "alpha"})
	s := NewStreamer(store, nil)

	var buf bytes.Buffer
	res, err := s.BuildArchive(context.Background(), []string{"uploads/1-a.txt", "uploads/gone.txt"}, &buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"uploads/1-a.txt"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "uploads/gone.txt", res.Failed[0].Key)
	assert.True(t, errors.Is(res.Failed[0].Err, storage.ErrNotFound))
	assert.Equal(t, []string{"uploads/gone.txt"}, res.FailedKeys())

	entries := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{"1-a.txt": "alpha"}, entries)
}

func TestBuildArchive_AllMissingStillValid(t *testing.T) {
	s := NewStreamer(storage.NewMemoryStore(), nil)

	var buf bytes.Buffer
	res, err := s.BuildArchive(context.Background(), []string{"x/y"}, &buf)
	require.NoError(t, err)
	assert.Len(t, res.Failed, 1)
	assert.Empty(t, readArchive(t, buf.Bytes()))
}

func TestBuildArchive_DuplicateNamesKept(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, map[string]string{"a/same.txt": "1", "b/same.txt": "2"})
	s := NewStreamer(store, nil)

	var buf bytes.Buffer
	_, err := s.BuildArchive(context.Background(), []string{"a/same.txt", "b/same.txt"}, &buf)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "same.txt", zr.File[0].Name)
	assert.Equal(t, "same.txt", zr.File[1].Name)
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("client went away") }

func TestBuildArchive_WriteFailureStops(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, map[string]string{"a/1.txt": "1", "a/2.txt": "2"})
	s := NewStreamer(store, nil)

	res, err := s.BuildArchive(context.Background(), []string{"a/1.txt", "a/2.txt"}, brokenWriter{})
	assert.ErrorContains(t, err, "client went away")
	assert.Empty(t, res.Succeeded)
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "1-a.txt", EntryName("uploads/1-a.txt"))
	assert.Equal(t, "plain", EntryName("plain"))
	assert.Equal(t, "c", EntryName("a/b/c"))
}

func TestFailedKeysEncoding(t *testing.T) {
	assert.Nil(t, DecodeFailedKeys(""))
	encoded := EncodeFailedKeys([]string{"a/b c.txt", "x,y"})
	assert.Equal(t, "a%2Fb+c.txt,x%2Cy", encoded)
	assert.Equal(t, []string{"a/b c.txt", "x,y"}, DecodeFailedKeys(encoded))
}
