package memory

import (
	"context"
	"sync"
	"time"
)

// CounterStore is an in-memory fixed-window AtomicCounterStore.
type CounterStore struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewCounterStore creates a store using the wall clock.
func NewCounterStore() *CounterStore {
	return NewCounterStoreWithClock(time.Now)
}

// NewCounterStoreWithClock creates a store with an injected clock.
func NewCounterStoreWithClock(now func() time.Time) *CounterStore {
	return &CounterStore{now: now, windows: make(map[string]*window)}
}

// Incr increments the counter for key, starting a fresh window when the
// previous one has expired.
func (s *CounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(ttl)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}
