package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepository_MissingFile(t *testing.T) {
	r := NewFileRepository(filepath.Join(t.TempDir(), "ns.json"))

	snap, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
}

func TestFileRepository_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ns.json")
	r := NewFileRepository(path)
	ctx := context.Background()

	in := domain.Snapshot{
		Items: []domain.StorageItem{{ID: "f1", Title: "Docs", Kind: domain.KindFolder}},
		Usage: "0",
	}
	require.NoError(t, r.Save(ctx, in))

	out, err := r.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Docs", out.Items[0].Title)
	assert.Equal(t, "0", out.Usage)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileRepository(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileRepository_Changes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.json")
	watcher := NewFileRepository(path)
	writer := NewFileRepository(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := watcher.Changes(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Save(context.Background(), domain.Snapshot{Usage: "1"}))

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change notification")
	}

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryRepository_Changes(t *testing.T) {
	r := NewMemoryRepository(domain.Snapshot{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Changes(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Save(context.Background(), domain.Snapshot{Usage: "5"}))
	require.NoError(t, r.Save(context.Background(), domain.Snapshot{Usage: "6"}))

	<-ch
	snap, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6", snap.Usage)
}
