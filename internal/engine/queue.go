package engine

import (
	"sync"

	"github.com/patchlens/patchlens/pkg/errors"
)

// ErrQueueFull is returned by Enqueue when the job buffer is at capacity.
// Callers translate it into their own admission response.
var ErrQueueFull = errors.New(errors.KindInternal, "job queue is full")

// Queue is the bounded in-memory buffer between ingress and the worker
// pool. Admission never blocks: a full buffer rejects the job so webhook
// ingestion stays responsive regardless of pipeline latency.
type Queue struct {
	mu     sync.Mutex
	jobs   chan *Job
	closed bool
}

// NewQueue creates a queue holding up to capacity jobs
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		jobs: make(chan *Job, capacity),
	}
}

// TryEnqueue adds a job if buffer space is available. It reports false when
// the queue is full or closed.
func (q *Queue) TryEnqueue(job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

// TryEnqueueAll admits every job or none of them. A push event expands
// into one job per commit; partial admission would review an arbitrary
// prefix of the push, so the batch is atomic.
func (q *Queue) TryEnqueueAll(jobs []*Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(jobs) > cap(q.jobs)-len(q.jobs) {
		return false
	}
	// Space was checked under the lock and workers only ever remove jobs,
	// so none of these sends can block.
	for _, job := range jobs {
		q.jobs <- job
	}
	return true
}

// Jobs returns the receive side consumed by workers. Close closes the
// channel; workers drain whatever is buffered and exit.
func (q *Queue) Jobs() <-chan *Job {
	return q.jobs
}

// Close stops admission. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}

// Depth returns the number of buffered jobs
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Capacity returns the buffer size
func (q *Queue) Capacity() int {
	return cap(q.jobs)
}
