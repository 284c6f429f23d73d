// Package memory holds single-instance, in-process implementations of the
// shared-state contracts. They are correct only when one process serves all
// traffic; multi-instance deployments must use the postgres/redis-backed
// implementations instead.
package memory

import (
	"context"
	"sync"
	"time"

	"bookpay/internal/domain/webhook"
)

// DedupStore is an in-memory UniqueInsertStore keyed by
// (provider, event id).
type DedupStore struct {
	mu   sync.Mutex
	seen map[string]webhook.Received
}

// NewDedupStore creates an empty store.
func NewDedupStore() *DedupStore {
	return &DedupStore{seen: make(map[string]webhook.Received)}
}

func dedupKey(providerName, eventID string) string {
	return providerName + ":" + eventID
}

// Register inserts if absent under one lock acquisition, mirroring the
// atomicity of a unique-constraint insert.
func (s *DedupStore) Register(_ context.Context, rec webhook.Received) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(rec.Provider, rec.EventID)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = rec
	return true, nil
}

// PurgeOlderThan drops records received before the cutoff.
func (s *DedupStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.seen {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.seen, key)
			n++
		}
	}
	return n, nil
}

// Unregister drops an unprocessed registration so a redelivery passes the
// dedup gate again.
func (s *DedupStore) Unregister(_ context.Context, providerName, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(providerName, eventID)
	if rec, ok := s.seen[key]; ok && !rec.Processed {
		delete(s.seen, key)
	}
	return nil
}

// MarkProcessed flips the processed flag on the audit record.
func (s *DedupStore) MarkProcessed(_ context.Context, providerName, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(providerName, eventID)
	if rec, ok := s.seen[key]; ok {
		rec.Processed = true
		s.seen[key] = rec
	}
	return nil
}
