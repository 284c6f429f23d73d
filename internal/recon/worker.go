package recon

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"bookpay/internal/provider"
)

// Worker runs reconciliation for every registered provider on a schedule,
// independently of live ingestion.
type Worker struct {
	engine   *Engine
	registry *provider.Registry
	interval time.Duration
	lookback time.Duration
}

// NewWorker creates a worker with a 1h cadence over a 24h window.
func NewWorker(engine *Engine, registry *provider.Registry) *Worker {
	return NewWorkerWithSchedule(engine, registry, time.Hour, 24*time.Hour)
}

// NewWorkerWithSchedule creates a worker with an explicit cadence and
// lookback window.
func NewWorkerWithSchedule(engine *Engine, registry *provider.Registry, interval, lookback time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &Worker{
		engine:   engine,
		registry: registry,
		interval: interval,
		lookback: lookback,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("reconcile worker: started")
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconcile worker: stopping")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	to := time.Now().UTC()
	from := to.Add(-w.lookback)

	for _, name := range w.registry.List() {
		report, err := w.engine.Reconcile(ctx, name, from, to)
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("reconcile worker: run failed")
			continue
		}
		if len(report.Unmatched) > 0 || len(report.Discrepancies) > 0 {
			log.Warn().
				Str("provider", name).
				Int("unmatched", len(report.Unmatched)).
				Int("discrepancies", len(report.Discrepancies)).
				Msg("reconcile worker: discrepancies need operator attention")
		}
	}
}
