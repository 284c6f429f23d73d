package postgres

import (
	"context"
	"encoding/json"
)

// JobQueue enqueues notification jobs into the table the external
// background-job system drains. Enqueueing inside a unit of work makes the
// job part of the same atomic write as the ledger effect it announces.
type JobQueue struct {
	db querier
}

// NewJobQueue creates a pool-backed queue.
func NewJobQueue(db querier) *JobQueue {
	return &JobQueue{db: db}
}

// Enqueue inserts one job; delivery and retry semantics belong to the
// consumer side.
func (q *JobQueue) Enqueue(ctx context.Context, jobType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO notification_jobs (job_type, payload, created_at)
		VALUES ($1, $2, now())`, jobType, body)
	return err
}
