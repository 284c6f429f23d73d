package security

import (
	"context"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/store/repositories"
)

// Deduplicator is the persistent exactly-once gate keyed by
// (provider, event id). It relies on the store's atomic insert-if-absent
// primitive, not a read-then-write check, so concurrent deliveries of the
// same event cannot race past it.
type Deduplicator struct {
	store repositories.UniqueInsertStore
}

// NewDeduplicator creates a deduplicator over the given store.
func NewDeduplicator(store repositories.UniqueInsertStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// Register records the delivery. firstSeen=false means this event was
// already received; the caller short-circuits with success so the provider
// observes an idempotent acknowledgment. Store errors fail closed: the
// delivery is rejected and the provider retries.
func (d *Deduplicator) Register(ctx context.Context, rec webhook.Received) (firstSeen bool, err error) {
	return d.store.Register(ctx, rec)
}
