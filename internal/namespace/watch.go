package namespace

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how often Watch re-reads the repository when no
// change notification arrives.
const DefaultPollInterval = 2 * time.Second

// Watch keeps the tree in sync with writes made by other processes. It
// reloads on every tick of interval and whenever the repository signals a
// change, until ctx is done. Local unsaved state does not exist, so a reload
// simply adopts the last write.
func (n *Namespace) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	changes, err := n.repo.Changes(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("change notifications unavailable, polling only")
		changes = nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
		}
		if err := n.Load(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("namespace reload failed")
		}
	}
}
