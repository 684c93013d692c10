package pricestore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magnetico/order-api/internal/model"
)

const (
	recordKey     = "price:config"
	updateChannel = "price:updates"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Saves go to the primary store, refresh the cache, and publish on the
// update channel so other instances can drop their local price mirror.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) Load(ctx context.Context) (*model.PriceRecord, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, recordKey).Bytes()
	if err == nil {
		var rec model.PriceRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	// Cache miss: read from primary.
	rec, err := s.primary.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, rec)
	return rec, nil
}

func (s *CachedStore) Save(ctx context.Context, rec *model.PriceRecord) error {
	if err := s.primary.Save(ctx, rec); err != nil {
		return err
	}

	s.cache(ctx, rec)

	// Signal other instances to drop their runtime mirror. Best effort:
	// a missed publish only delays convergence until the next reload.
	if data, err := json.Marshal(rec); err == nil {
		if err := s.rdb.Publish(ctx, updateChannel, data).Err(); err != nil {
			slog.Warn("price update publish failed", "err", err)
		}
	}
	return nil
}

// SubscribeUpdates blocks, invoking onUpdate for every price update
// published by any instance, until ctx is cancelled. Run in a goroutine.
func (s *CachedStore) SubscribeUpdates(ctx context.Context, onUpdate func(*model.PriceRecord)) {
	sub := s.rdb.Subscribe(ctx, updateChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rec model.PriceRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				slog.Warn("malformed price update message", "err", err)
				continue
			}
			onUpdate(&rec)
		}
	}
}

func (s *CachedStore) cache(ctx context.Context, rec *model.PriceRecord) {
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, recordKey, data, s.ttl)
	}
}
