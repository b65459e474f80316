package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/andresuchdata/tutorstore/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS storage_items (
	namespace     TEXT        NOT NULL,
	position      INTEGER     NOT NULL,
	id            TEXT        NOT NULL,
	title         TEXT        NOT NULL,
	kind          TEXT        NOT NULL,
	parent_id     TEXT        NOT NULL DEFAULT '',
	size          TEXT        NOT NULL DEFAULT '',
	size_unit     TEXT        NOT NULL DEFAULT '',
	size_bytes    BIGINT      NOT NULL DEFAULT 0,
	storage_key   TEXT        NOT NULL DEFAULT '',
	storage_url   TEXT        NOT NULL DEFAULT '',
	last_modified TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (namespace, id)
);
CREATE TABLE IF NOT EXISTS storage_usage (
	namespace TEXT PRIMARY KEY,
	usage     TEXT
);`

// NamespaceRepository stores one namespace per name in Postgres and
// announces saves with NOTIFY.
type NamespaceRepository struct {
	db        *DB
	namespace string
	channel   string
}

func NewNamespaceRepository(db *DB, namespace string) *NamespaceRepository {
	return &NamespaceRepository{
		db:        db,
		namespace: namespace,
		channel:   "storage_namespace_changes",
	}
}

// EnsureSchema creates the backing tables if they are missing.
func (r *NamespaceRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create namespace schema: %w", err)
	}
	return nil
}

func (r *NamespaceRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	var items []domain.StorageItem
	query := `
		SELECT id, title, kind, parent_id, size, size_unit, size_bytes, storage_key, storage_url, last_modified
		FROM storage_items
		WHERE namespace = $1
		ORDER BY position
	`
	if err := r.db.SelectContext(ctx, &items, query, r.namespace); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to load namespace items: %w", err)
	}

	var usage sql.NullString
	err := r.db.GetContext(ctx, &usage, `SELECT usage FROM storage_usage WHERE namespace = $1`, r.namespace)
	if err != nil && !isNoRows(err) {
		return domain.Snapshot{}, fmt.Errorf("failed to load namespace usage: %w", err)
	}

	snap := domain.Snapshot{Items: items}
	if usage.Valid {
		snap.Usage = usage.String
	}
	return snap, nil
}

// Save replaces every row of the namespace inside one transaction.
func (r *NamespaceRepository) Save(ctx context.Context, snap domain.Snapshot) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM storage_items WHERE namespace = $1`, r.namespace); err != nil {
			return fmt.Errorf("failed to clear namespace items: %w", err)
		}

		insert := `
			INSERT INTO storage_items (namespace, position, id, title, kind, parent_id, size, size_unit, size_bytes, storage_key, storage_url, last_modified)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		for i, it := range snap.Items {
			modified := it.LastModified
			if modified.IsZero() {
				modified = time.Now().UTC()
			}
			if _, err := tx.ExecContext(ctx, insert,
				r.namespace, i, it.ID, it.Title, string(it.Kind), it.ParentID, it.Size, it.SizeUnit,
				it.SizeBytes, it.StorageKey, it.StorageURL, modified,
			); err != nil {
				return fmt.Errorf("failed to insert item %s: %w", it.ID, err)
			}
		}

		upsert := `
			INSERT INTO storage_usage (namespace, usage)
			VALUES ($1, $2)
			ON CONFLICT (namespace) DO UPDATE SET usage = EXCLUDED.usage
		`
		if _, err := tx.ExecContext(ctx, upsert, r.namespace, snap.Usage); err != nil {
			return fmt.Errorf("failed to save usage: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, r.channel, r.namespace); err != nil {
			return fmt.Errorf("failed to notify: %w", err)
		}
		return nil
	})
}

// Changes opens a dedicated LISTEN connection and forwards notifications for
// this namespace.
func (r *NamespaceRepository) Changes(ctx context.Context) (<-chan struct{}, error) {
	if r.db.dsn == "" {
		return nil, errors.New("change notifications need a DSN-backed connection")
	}

	listener := pq.NewListener(r.db.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn().Err(err).Int("event", int(ev)).Msg("namespace listener event")
		}
	})
	if err := listener.Listen(r.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", r.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer listener.Close()
		forwardNotifications(ctx, listener.Notify, r.namespace, out)
	}()
	return out, nil
}

// forwardNotifications relays notifications whose payload names namespace.
// A nil notification means the connection was re-established and events may
// have been missed, so it is forwarded too.
func forwardNotifications(ctx context.Context, in <-chan *pq.Notification, namespace string, out chan<- struct{}) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-in:
			if !ok {
				return
			}
			if n == nil || n.Extra == namespace {
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}
}

var _ repository.Repository = (*NamespaceRepository)(nil)
