package repository

import (
	"context"
	"sync"

	"github.com/andresuchdata/tutorstore/internal/domain"
)

// MemoryRepository keeps the snapshot in process. Every Save signals all
// active Changes subscribers.
type MemoryRepository struct {
	mu   sync.Mutex
	snap domain.Snapshot
	subs map[chan struct{}]struct{}
}

func NewMemoryRepository(initial domain.Snapshot) *MemoryRepository {
	return &MemoryRepository{
		snap: cloneSnapshot(initial),
		subs: make(map[chan struct{}]struct{}),
	}
}

func (r *MemoryRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneSnapshot(r.snap), nil
}

func (r *MemoryRepository) Save(ctx context.Context, snap domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = cloneSnapshot(snap)
	for ch := range r.subs {
		notify(ch)
	}
	return nil
}

func (r *MemoryRepository) Changes(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, ch)
		close(ch)
		r.mu.Unlock()
	}()
	return ch, nil
}

func cloneSnapshot(s domain.Snapshot) domain.Snapshot {
	items := make([]domain.StorageItem, len(s.Items))
	copy(items, s.Items)
	return domain.Snapshot{Items: items, Usage: s.Usage}
}

var _ Repository = (*MemoryRepository)(nil)
