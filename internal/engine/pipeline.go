package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/scm"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// execute walks a job through the pipeline stages. It returns the stored
// review record on success and nil with a kinded error otherwise. A panic
// anywhere in the run is converted into an internal failure log entry
// carrying the stack so the worker survives.
func (e *Engine) execute(ctx context.Context, job *Job) (record *model.ReviewRecord, err error) {
	stage := model.StageDiffFetch
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			e.logger.Error("Pipeline panic recovered",
				zap.String("job_id", job.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", stack))
			panicErr := errors.Newf(errors.KindInternal, "panic: %v", r)
			e.recordFailureWithStack(ctx, job, stage, panicErr, string(stack))
			record, err = nil, panicErr
		}
	}()
	return e.run(ctx, job, &stage)
}

// run is the stage sequence. stage always names the stage about to run so
// both cancellation entries and the panic handler attribute failures to the
// right place.
func (e *Engine) run(ctx context.Context, job *Job, stage *model.FailureStage) (*model.ReviewRecord, error) {
	*stage = model.StageDiffFetch
	if err := e.checkCancelled(ctx, job, *stage); err != nil {
		return nil, err
	}
	diff, err := e.resolveDiff(ctx, job)
	if err != nil {
		e.recordFailure(ctx, job, *stage, err)
		return nil, err
	}
	if strings.TrimSpace(diff) == "" {
		// Nothing to review. Not a failure: no review row, no failure row.
		e.logger.Info("Change set is empty, skipping review",
			zap.String("job_id", job.ID),
			zap.String("project_key", job.ProjectKey),
			zap.String("repo_slug", job.RepoSlug))
		return nil, errors.New(errors.KindEmptyChangeSet, "change set is empty")
	}

	authorName, authorEmail := e.resolveAuthor(ctx, job)

	*stage = model.StageLLMInvocation
	if err := e.checkCancelled(ctx, job, *stage); err != nil {
		return nil, err
	}
	promptText, err := e.prompts.Build(diff)
	if err != nil {
		e.recordFailure(ctx, job, *stage, err)
		return nil, err
	}
	feedback, err := e.llm.ReviewDiff(ctx, promptText)
	if err != nil {
		// A reply that arrived but could not be used is a parse failure,
		// not an invocation failure.
		if kind := errors.KindOf(err); kind == errors.KindMalformed || kind == errors.KindEmptyResponse {
			*stage = model.StageLLMParse
		}
		e.recordFailure(ctx, job, *stage, err)
		return nil, err
	}

	*stage = model.StagePersistence
	if err := e.checkCancelled(ctx, job, *stage); err != nil {
		return nil, err
	}
	record := &model.ReviewRecord{
		ReviewType:     job.ReviewType(),
		TriggerType:    job.TriggerType(),
		ProjectKey:     job.ProjectKey,
		RepoSlug:       job.RepoSlug,
		CommitID:       job.CommitID,
		MergeReqID:     job.MergeReqID,
		AuthorName:     authorName,
		AuthorEmail:    authorEmail,
		DiffContent:    diff,
		ReviewFeedback: feedback,
		LLMProvider:    e.llm.Provider(),
		LLMModel:       e.llm.Model(),
	}
	record.EmailRecipients = e.notifier.Recipients(record)
	if err := e.store.Reviews().Create(record); err != nil {
		e.recordFailure(ctx, job, *stage, err)
		return nil, err
	}

	*stage = model.StageNotification
	e.notify(ctx, record)
	return record, nil
}

// checkCancelled observes run and engine cancellation at a stage boundary.
// A cancelled run is logged as a failure attributed to the stage that was
// about to start, preserving the audit trail for jobs dropped by shutdown.
func (e *Engine) checkCancelled(ctx context.Context, job *Job, stage model.FailureStage) error {
	var cause error
	select {
	case <-ctx.Done():
		cause = ctx.Err()
	case <-e.ctx.Done():
		cause = e.ctx.Err()
	default:
		return nil
	}
	err := errors.Wrap(errors.KindCancelled, fmt.Sprintf("run cancelled before %s", stage), cause)
	e.recordFailure(ctx, job, stage, err)
	return err
}

// resolveDiff returns the change set text for the job. An uploaded diff
// wins; otherwise the source-control server is asked.
func (e *Engine) resolveDiff(ctx context.Context, job *Job) (string, error) {
	if job.SuppliedDiff != "" {
		return job.SuppliedDiff, nil
	}
	if job.MergeReqID > 0 {
		return e.scm.FetchMergeRequestDiff(ctx, job.ProjectKey, job.RepoSlug, job.MergeReqID)
	}
	return e.scm.FetchCommitDiff(ctx, job.ProjectKey, job.RepoSlug, job.CommitID)
}

// resolveAuthor fills in author identity, asking the source-control server
// only when the job did not already carry an email. Lookup failures degrade
// to whatever the job had; they never fail the run.
func (e *Engine) resolveAuthor(ctx context.Context, job *Job) (string, string) {
	if job.AuthorEmail != "" {
		return job.AuthorName, job.AuthorEmail
	}
	if job.Trigger == TriggerUploadedDiff {
		// There is no commit to ask about.
		return job.AuthorName, job.AuthorEmail
	}

	var (
		author scm.Author
		err    error
	)
	if job.MergeReqID > 0 {
		author, err = e.scm.FetchMergeRequestAuthor(ctx, job.ProjectKey, job.RepoSlug, job.MergeReqID)
	} else {
		author, err = e.scm.FetchCommitAuthor(ctx, job.ProjectKey, job.RepoSlug, job.CommitID)
	}
	if err != nil {
		e.logger.Warn("Author lookup failed, review will have no recipient",
			zap.String("job_id", job.ID),
			zap.String("project_key", job.ProjectKey),
			zap.String("repo_slug", job.RepoSlug),
			zap.Error(err))
		return job.AuthorName, job.AuthorEmail
	}

	name := author.Name
	if name == "" {
		name = job.AuthorName
	}
	return name, author.Email
}

// notify delivers the review email. Delivery problems leave email_sent
// false and are logged; the review itself already succeeded.
func (e *Engine) notify(ctx context.Context, record *model.ReviewRecord) {
	if ctx.Err() != nil || e.ctx.Err() != nil {
		e.logger.Warn("Skipping notification, run cancelled",
			zap.Uint("review_id", record.ID))
		return
	}
	sent, err := e.notifier.Notify(ctx, record)
	if err != nil {
		e.logger.Warn("Notification failed",
			zap.Uint("review_id", record.ID),
			zap.Error(err))
		return
	}
	if !sent {
		return
	}
	if err := e.store.Reviews().SetEmailSent(record.ID, true); err != nil {
		e.logger.Warn("Email sent but flag update failed",
			zap.Uint("review_id", record.ID),
			zap.Error(err))
	}
	record.EmailSent = true
}

func (e *Engine) recordFailure(ctx context.Context, job *Job, stage model.FailureStage, cause error) {
	e.recordFailureWithStack(ctx, job, stage, cause, "")
}

// recordFailureWithStack persists a failure log entry built from whatever
// the job knows about the change. Persisting the entry itself failing is
// the one place a failure can only be logged.
func (e *Engine) recordFailureWithStack(ctx context.Context, job *Job, stage model.FailureStage, cause error, stack string) {
	errorType := string(errors.KindOf(cause))
	telemetry.GetMetrics().RecordStageFailure(ctx, string(stage), errorType)

	entry := &model.FailureLog{
		EventType:      job.EventType,
		EventKey:       job.EventKey,
		RequestPayload: job.Payload,
		ProjectKey:     job.ProjectKey,
		RepoSlug:       job.RepoSlug,
		CommitID:       job.CommitID,
		MergeReqID:     job.MergeReqID,
		AuthorName:     job.AuthorName,
		AuthorEmail:    job.AuthorEmail,
		FailureStage:   stage,
		ErrorType:      errorType,
		ErrorMessage:   cause.Error(),
		ErrorStack:     stack,
	}
	if err := e.store.Failures().Create(entry); err != nil {
		e.logger.Error("Failed to persist failure log",
			zap.String("job_id", job.ID),
			zap.String("stage", string(stage)),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	e.logger.Warn("Pipeline run failed",
		zap.String("job_id", job.ID),
		zap.String("stage", string(stage)),
		zap.String("error_type", errorType),
		zap.Error(cause))
}
