package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"bookpay/internal/store/repositories"
)

// RetentionWorker purges processed webhook audit rows past the retention
// window. Rows inside the window stay untouched so the dedup gate keeps
// its memory of recent event IDs.
type RetentionWorker struct {
	events    repositories.WebhookEventRepository
	retention time.Duration
	interval  time.Duration
}

// NewRetentionWorker creates a worker that purges daily.
func NewRetentionWorker(events repositories.WebhookEventRepository, retention time.Duration) *RetentionWorker {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &RetentionWorker{
		events:    events,
		retention: retention,
		interval:  24 * time.Hour,
	}
}

// Run blocks until ctx is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	log.Info().Dur("retention", w.retention).Msg("retention worker: started")
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("retention worker: stopping")
			return
		case <-t.C:
			cutoff := time.Now().UTC().Add(-w.retention)
			n, err := w.events.PurgeOlderThan(ctx, cutoff)
			if err != nil {
				log.Error().Err(err).Msg("retention worker: purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("retention worker: purged webhook events")
			}
		}
	}
}
