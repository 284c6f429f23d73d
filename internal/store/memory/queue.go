package memory

import (
	"context"
	"sync"
)

// Job is one enqueued notification job.
type Job struct {
	Type    string
	Payload any
}

// JobQueue is an in-memory JobQueue, used in tests and single-process runs.
type JobQueue struct {
	mu   sync.Mutex
	jobs []Job
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{}
}

// Enqueue appends a job.
func (q *JobQueue) Enqueue(_ context.Context, jobType string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, Job{Type: jobType, Payload: payload})
	return nil
}

// Jobs returns a snapshot of enqueued jobs.
func (q *JobQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}
