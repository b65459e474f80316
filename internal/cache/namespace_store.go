package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/andresuchdata/tutorstore/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const namespaceKeyPrefix = "tutorstore:namespace:"

// NamespaceStore keeps a namespace snapshot in a Redis hash with two fields,
// "items" (JSON) and "usage" (decimal string), and publishes on a channel
// after each save.
type NamespaceStore struct {
	client  *redis.Client
	key     string
	channel string
}

func NewNamespaceStore(client *redis.Client, namespace string) *NamespaceStore {
	key := namespaceKeyPrefix + namespace
	return &NamespaceStore{
		client:  client,
		key:     key,
		channel: key + ":changes",
	}
}

func (s *NamespaceStore) Load(ctx context.Context) (domain.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, fmt.Errorf("redis load namespace: %w", err)
	}

	var snap domain.Snapshot
	if raw := fields["items"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Items); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode namespace items: %w", err)
		}
	}
	snap.Usage = fields["usage"]
	return snap, nil
}

func (s *NamespaceStore) Save(ctx context.Context, snap domain.Snapshot) error {
	items := snap.Items
	if items == nil {
		items = []domain.StorageItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode namespace items: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, "items", string(payload), "usage", snap.Usage)
		pipe.Publish(ctx, s.channel, "saved")
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save namespace: %w", err)
	}
	return nil
}

func (s *NamespaceStore) Changes(ctx context.Context) (<-chan struct{}, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	// Wait for the subscription confirmation so no publish after this call
	// is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}

	out := make(chan struct{}, 1)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					log.Debug().Str("channel", s.channel).Msg("namespace subscription closed")
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

var _ repository.Repository = (*NamespaceStore)(nil)
