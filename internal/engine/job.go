package engine

import (
	"time"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/idgen"
)

// Trigger names what started a review run
type Trigger string

const (
	// TriggerWebhook marks runs started by an inbound SCM webhook
	TriggerWebhook Trigger = "webhook"

	// TriggerManual marks operator-requested runs against a known change
	TriggerManual Trigger = "manual"

	// TriggerUploadedDiff marks runs over a diff supplied in the request
	TriggerUploadedDiff Trigger = "uploaded_diff"
)

// Job carries everything a single pipeline run needs. Jobs live in memory
// only; they are owned by the worker executing them and discarded when the
// run returns.
type Job struct {
	// ID correlates log lines and spans for one run
	ID string

	Trigger   Trigger
	EventType model.EventType

	// EventKey is the originating webhook event name, if any
	EventKey string

	ProjectKey string
	RepoSlug   string

	// Exactly one of CommitID/MergeReqID identifies the change, except for
	// uploaded diffs where CommitID holds a content-derived pseudo id.
	CommitID   string
	MergeReqID int64

	AuthorName  string
	AuthorEmail string

	// SuppliedDiff skips the SCM fetch when non-empty
	SuppliedDiff string

	// Payload is a snapshot of the inbound request, kept for failure logs
	Payload model.JSONMap

	ReceivedAt time.Time
}

// NewJob creates a job with an assigned id and receive timestamp
func NewJob(trigger Trigger, eventType model.EventType) *Job {
	return &Job{
		ID:         idgen.NewID(),
		Trigger:    trigger,
		EventType:  eventType,
		ReceivedAt: time.Now().UTC(),
	}
}

// Kind names the change family for metrics
func (j *Job) Kind() string {
	if j.MergeReqID > 0 {
		return "merge_request"
	}
	return "commit"
}

// ReviewType classifies the resulting record: operator-requested and
// uploaded-diff runs are manual, webhook runs automatic
func (j *Job) ReviewType() model.ReviewType {
	if j.Trigger == TriggerManual || j.Trigger == TriggerUploadedDiff {
		return model.ReviewTypeManual
	}
	return model.ReviewTypeAuto
}

// TriggerType reports what kind of change the job reviews. A merge request
// id wins over a commit id.
func (j *Job) TriggerType() model.TriggerType {
	if j.MergeReqID > 0 {
		return model.TriggerTypePullRequest
	}
	return model.TriggerTypeCommit
}
