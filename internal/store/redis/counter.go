// Package redis holds the shared-store implementations used by
// multi-instance deployments, where in-process state cannot enforce a
// single global ceiling.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CounterStore is a redis-backed AtomicCounterStore: INCR plus a TTL set on
// the first increment of each window. INCR is atomic server-side, so
// concurrent instances share one counter.
type CounterStore struct {
	client *redis.Client
}

// NewCounterStore creates a store over an existing client.
func NewCounterStore(client *redis.Client) *CounterStore {
	return &CounterStore{client: client}
}

// Incr increments the fixed-window counter and returns the new count.
func (s *CounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX: only the first increment of a window sets the expiry
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MustOpen connects and pings, failing fast on misconfiguration.
func MustOpen(ctx context.Context, addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect fail")
	}
	return client
}
