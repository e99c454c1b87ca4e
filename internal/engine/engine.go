// Package engine runs the review pipeline. A bounded queue feeds a fixed
// pool of workers; each job moves through diff resolution, prompt
// construction, LLM review, persistence and notification. Failures at any
// stage are written to the failure log so no accepted job vanishes silently.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/internal/llm"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/notify"
	"github.com/patchlens/patchlens/internal/prompt"
	"github.com/patchlens/patchlens/internal/scm"
	"github.com/patchlens/patchlens/internal/store"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// Review outcomes recorded on the completion metric
const (
	outcomeSuccess = "success"
	outcomeNoDiff  = "no_diff"
	outcomeFailed  = "failed"
)

// Deps bundles the external clients the pipeline calls. Interfaces keep
// tests on in-process fakes.
type Deps struct {
	SCM      scm.Client
	LLM      llm.Client
	Notifier notify.Notifier
	Prompts  *prompt.Builder
}

// Engine owns the job queue and worker pool
type Engine struct {
	cfg      *config.Config
	store    store.Store
	scm      scm.Client
	llm      llm.Client
	notifier notify.Notifier
	prompts  *prompt.Builder

	queue   *Queue
	workers int
	wg      sync.WaitGroup

	// ctx is cancelled by Stop; workers observe it between stages
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// Stats is a point-in-time snapshot for health reporting
type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`
	Workers       int `json:"workers"`
}

// New assembles an engine. Start must be called before Enqueue delivers
// jobs to anyone.
func New(cfg *config.Config, s store.Store, deps Deps) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		store:    s,
		scm:      deps.SCM,
		llm:      deps.LLM,
		notifier: deps.Notifier,
		prompts:  deps.Prompts,
		queue:    NewQueue(cfg.Engine.QueueSize),
		workers:  cfg.Engine.Workers,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("engine"),
	}
}

// Start launches the worker pool
func (e *Engine) Start() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	e.logger.Info("Engine started",
		zap.Int("workers", e.workers),
		zap.Int("queue_capacity", e.queue.Capacity()))
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()
	log := e.logger.With(zap.Int("worker", id))
	log.Debug("Worker started")
	for job := range e.queue.Jobs() {
		e.process(job)
	}
	log.Debug("Worker stopped")
}

// Stop closes admission, cancels in-progress runs at their next stage
// boundary and waits for workers to drain the buffer. It returns the
// context error when the grace period elapses first.
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping", zap.Int("queue_depth", e.queue.Depth()))
	e.cancel()
	e.queue.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Engine stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn("Shutdown grace period elapsed with workers still busy")
		return ctx.Err()
	}
}

// Enqueue admits a job to the buffer without blocking. A full or closed
// queue returns ErrQueueFull so the caller can reject the request.
func (e *Engine) Enqueue(ctx context.Context, job *Job) error {
	if !e.queue.TryEnqueue(job) {
		telemetry.GetMetrics().RecordJobRejected(ctx, job.Kind())
		e.logger.Warn("Job rejected, queue full",
			zap.String("job_id", job.ID),
			zap.String("kind", job.Kind()),
			zap.Int("queue_capacity", e.queue.Capacity()))
		return ErrQueueFull
	}
	telemetry.GetMetrics().RecordJobEnqueued(ctx, job.Kind(), string(job.Trigger))
	e.logger.Debug("Job enqueued",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind()),
		zap.Int("queue_depth", e.queue.Depth()))
	return nil
}

// EnqueueAll admits a batch atomically: either every job is buffered or
// none is and ErrQueueFull is returned. Push events use it so a multi-commit
// push is never half-reviewed.
func (e *Engine) EnqueueAll(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if !e.queue.TryEnqueueAll(jobs) {
		for _, job := range jobs {
			telemetry.GetMetrics().RecordJobRejected(ctx, job.Kind())
		}
		e.logger.Warn("Job batch rejected, queue full",
			zap.Int("batch_size", len(jobs)),
			zap.Int("queue_capacity", e.queue.Capacity()))
		return ErrQueueFull
	}
	for _, job := range jobs {
		telemetry.GetMetrics().RecordJobEnqueued(ctx, job.Kind(), string(job.Trigger))
	}
	e.logger.Debug("Job batch enqueued",
		zap.Int("batch_size", len(jobs)),
		zap.Int("queue_depth", e.queue.Depth()))
	return nil
}

// Stats reports queue occupancy for the health endpoint
func (e *Engine) Stats() Stats {
	return Stats{
		QueueDepth:    e.queue.Depth(),
		QueueCapacity: e.queue.Capacity(),
		Workers:       e.workers,
	}
}

// process runs one queued job end to end. The span and run detach from the
// engine context's cancellation so an in-flight stage finishes during
// shutdown; cancellation is still observed at stage boundaries.
func (e *Engine) process(job *Job) {
	ctx, span := telemetry.StartSpan(context.WithoutCancel(e.ctx), "engine.process",
		telemetry.WithJobAttributes(job.ID, job.ProjectKey, job.RepoSlug))
	defer span.End()

	telemetry.GetMetrics().RecordJobDequeued(ctx)
	e.logger.Info("Processing job",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind()),
		zap.String("trigger", string(job.Trigger)),
		zap.String("project_key", job.ProjectKey),
		zap.String("repo_slug", job.RepoSlug))

	start := time.Now()
	record, err := e.execute(ctx, job)
	outcome := outcomeForError(err)
	if err != nil && outcome == outcomeFailed {
		telemetry.SetSpanError(span, err)
	}
	telemetry.GetMetrics().RecordReviewCompleted(ctx, string(job.Trigger), outcome, time.Since(start).Seconds())

	if record != nil {
		e.logger.Info("Review completed",
			zap.String("job_id", job.ID),
			zap.Uint("review_id", record.ID),
			zap.Bool("email_sent", record.EmailSent),
			zap.Duration("duration", time.Since(start)))
	}
}

// RunSync executes a job on the caller's goroutine, bypassing the queue.
// Manual reviews use it so the client gets the outcome in the response.
func (e *Engine) RunSync(ctx context.Context, job *Job) (*model.ReviewRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.run_sync",
		telemetry.WithJobAttributes(job.ID, job.ProjectKey, job.RepoSlug))
	defer span.End()

	// Keep the gauge pair balanced even though the buffer is skipped.
	telemetry.GetMetrics().RecordJobEnqueued(ctx, job.Kind(), string(job.Trigger))
	telemetry.GetMetrics().RecordJobDequeued(ctx)

	start := time.Now()
	record, err := e.execute(ctx, job)
	outcome := outcomeForError(err)
	if err != nil && outcome == outcomeFailed {
		telemetry.SetSpanError(span, err)
	}
	telemetry.GetMetrics().RecordReviewCompleted(ctx, string(job.Trigger), outcome, time.Since(start).Seconds())
	return record, err
}

func outcomeForError(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.IsKind(err, errors.KindEmptyChangeSet):
		return outcomeNoDiff
	default:
		return outcomeFailed
	}
}
