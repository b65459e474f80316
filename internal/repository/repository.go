package repository

import (
	"context"

	"github.com/andresuchdata/tutorstore/internal/domain"
)

// Repository persists the namespace as a single snapshot. Save replaces the
// stored snapshot wholesale; concurrent writers resolve as last writer wins.
type Repository interface {
	Load(ctx context.Context) (domain.Snapshot, error)
	Save(ctx context.Context, snap domain.Snapshot) error
	// Changes delivers a signal whenever the stored snapshot may have been
	// modified by another writer. The channel closes when ctx is done.
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// notify performs a non-blocking send so bursts of events coalesce into one.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
