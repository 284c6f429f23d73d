package security

import (
	"context"
	"fmt"
	"time"

	"bookpay/internal/store/repositories"
)

// DefaultWindow is the fixed rate-limit window.
const DefaultWindow = 60 * time.Second

// RateLimiter throttles inbound webhook traffic per provider with a fixed
// window counter. The counter lives behind AtomicCounterStore so a
// single-instance in-memory counter and a shared redis counter are
// interchangeable; multi-instance deployments must use the shared one to
// enforce a single global ceiling.
type RateLimiter struct {
	counters repositories.AtomicCounterStore
	window   time.Duration
}

// NewRateLimiter creates a limiter with the default 60s window.
func NewRateLimiter(counters repositories.AtomicCounterStore) *RateLimiter {
	return &RateLimiter{counters: counters, window: DefaultWindow}
}

// Allow counts one request for the provider and fails with ErrRateLimited
// once the ceiling is exceeded within the current window. A ceiling <= 0
// disables throttling for that provider.
func (l *RateLimiter) Allow(ctx context.Context, providerName string, ceiling int) error {
	if ceiling <= 0 {
		return nil
	}
	key := "ratelimit:webhook:" + providerName
	n, err := l.counters.Incr(ctx, key, l.window)
	if err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}
	if n > int64(ceiling) {
		return fmt.Errorf("%w: provider %s exceeded %d/min", ErrRateLimited, providerName, ceiling)
	}
	return nil
}
