package postgres

import (
	"context"
	"time"

	"bookpay/internal/domain/webhook"
)

// WebhookEventRepository persists the dedup/audit record for received
// webhook deliveries. The (provider, event_id) unique constraint is the
// exactly-once gate.
type WebhookEventRepository struct {
	db querier
}

// NewWebhookEventRepository creates a pool-backed repository.
func NewWebhookEventRepository(db querier) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Register inserts if absent. ON CONFLICT DO NOTHING keeps the insert
// atomic under concurrent deliveries of the same event; the affected row
// count tells first delivery apart from duplicates.
func (r *WebhookEventRepository) Register(ctx context.Context, rec webhook.Received) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO webhook_events (provider, event_id, event_type, received_at, payload_hash, processed)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (provider, event_id) DO NOTHING`,
		rec.Provider, rec.EventID, rec.EventType, rec.ReceivedAt, rec.PayloadHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkProcessed flips the processed flag; the row itself is never mutated
// otherwise.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, providerName, eventID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE webhook_events
		SET processed = true
		WHERE provider = $1 AND event_id = $2`, providerName, eventID)
	return err
}

// Unregister releases an unprocessed registration. Deliveries rejected
// after the dedup insert (a throttled request) compensate through this so
// the provider's retry is not mistaken for a duplicate.
func (r *WebhookEventRepository) Unregister(ctx context.Context, providerName, eventID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM webhook_events
		WHERE provider = $1 AND event_id = $2 AND processed = false`,
		providerName, eventID)
	return err
}

// PurgeOlderThan removes audit rows past the retention window.
func (r *WebhookEventRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM webhook_events
		WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
