// Package model defines the data models for the application.
// All models use GORM for ORM operations with SQLite database.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONMap is a custom type for storing JSON maps in SQLite
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, j)
}

// Recipients is a custom type for storing the email recipient set in SQLite
type Recipients struct {
	To []string `json:"to"`
	CC []string `json:"cc,omitempty"`
}

// Value implements driver.Valuer interface
func (r Recipients) Value() (driver.Value, error) {
	if len(r.To) == 0 && len(r.CC) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(r)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (r *Recipients) Scan(value interface{}) error {
	if value == nil {
		*r = Recipients{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, r)
}

// IsEmpty reports whether the recipient set contains no addresses
func (r Recipients) IsEmpty() bool {
	return len(r.To) == 0 && len(r.CC) == 0
}

// ReviewType distinguishes automatic reviews from operator-requested ones
type ReviewType string

const (
	ReviewTypeAuto   ReviewType = "auto"
	ReviewTypeManual ReviewType = "manual"
)

// TriggerType represents the kind of change a review was produced for
type TriggerType string

const (
	TriggerTypeCommit      TriggerType = "commit"
	TriggerTypePullRequest TriggerType = "pull_request"
)

// EventType classifies the inbound request that led to a failure
type EventType string

const (
	EventTypeWebhook EventType = "webhook"
	EventTypeManual  EventType = "manual"
)

// FailureStage identifies the pipeline stage at which a run failed
type FailureStage string

const (
	StageIngressValidation FailureStage = "ingress_validation"
	StageDiffFetch         FailureStage = "diff_fetch"
	StageLLMInvocation     FailureStage = "llm_invocation"
	StageLLMParse          FailureStage = "llm_parse"
	StageNotification      FailureStage = "notification"
	StagePersistence       FailureStage = "persistence"
)

// ReviewRecord represents one completed code review
type ReviewRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Classification
	ReviewType  ReviewType  `gorm:"size:16;not null" json:"review_type"`  // "auto" or "manual"
	TriggerType TriggerType `gorm:"size:16;not null" json:"trigger_type"` // "commit" or "pull_request"

	// Change identification
	ProjectKey string `gorm:"size:255;not null;index" json:"project_key"`
	RepoSlug   string `gorm:"size:255;not null;index" json:"repo_slug"`
	CommitID   string `gorm:"size:64;index" json:"commit_id,omitempty"` // commit hash
	MergeReqID int64  `gorm:"index" json:"mr_id,omitempty"`             // PR/MR number if applicable

	// Author information (best effort, may be empty)
	AuthorName  string `gorm:"size:255" json:"author_name,omitempty"`
	AuthorEmail string `gorm:"size:255;index" json:"author_email,omitempty"`

	// Review content
	DiffContent    string `gorm:"type:text;not null" json:"diff_content"`    // the exact diff that was reviewed
	ReviewFeedback string `gorm:"type:text;not null" json:"review_feedback"` // LLM output, markdown

	// Notification outcome
	EmailRecipients Recipients `gorm:"type:json" json:"email_recipients"`
	EmailSent       bool       `gorm:"default:false" json:"email_sent"`

	// Provenance
	LLMProvider string `gorm:"size:64" json:"llm_provider"`
	LLMModel    string `gorm:"size:128" json:"llm_model"`
}

// FailureLog represents a pipeline run that ended without a review,
// or an inbound request that was rejected as unprocessable
type FailureLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Triggering event
	EventType EventType `gorm:"size:16;not null" json:"event_type"`  // "webhook" or "manual"
	EventKey  string    `gorm:"size:128" json:"event_key,omitempty"` // webhook event name if known

	// RequestPayload stores a snapshot of the inbound request (may be truncated)
	RequestPayload JSONMap `gorm:"type:json" json:"request_payload,omitempty"`

	// Change identification (whatever was extracted before the failure)
	ProjectKey  string `gorm:"size:255;index" json:"project_key,omitempty"`
	RepoSlug    string `gorm:"size:255" json:"repo_slug,omitempty"`
	CommitID    string `gorm:"size:64" json:"commit_id,omitempty"`
	MergeReqID  int64  `json:"mr_id,omitempty"`
	AuthorName  string `gorm:"size:255" json:"author_name,omitempty"`
	AuthorEmail string `gorm:"size:255" json:"author_email,omitempty"`

	// Failure classification
	FailureStage FailureStage `gorm:"size:32;not null;index:idx_stage_resolved,priority:1" json:"failure_stage"`
	ErrorType    string       `gorm:"size:64;not null" json:"error_type"`
	ErrorMessage string       `gorm:"type:text;not null" json:"error_message"`
	ErrorStack   string       `gorm:"type:text" json:"error_stacktrace,omitempty"`

	// Operator workflow
	RetryCount      int    `gorm:"default:0;not null" json:"retry_count"` // number of operator-initiated retries
	Resolved        bool   `gorm:"default:false;index:idx_stage_resolved,priority:2" json:"resolved"`
	ResolutionNotes string `gorm:"type:text" json:"resolution_notes,omitempty"`
}

// Retryable reports whether the failure carries enough identification to
// derive a new job from it
func (f *FailureLog) Retryable() bool {
	if f.ProjectKey == "" || f.RepoSlug == "" {
		return false
	}
	return f.CommitID != "" || f.MergeReqID > 0
}

// AllModels returns all models for auto-migration
func AllModels() []interface{} {
	return []interface{}{
		&ReviewRecord{},
		&FailureLog{},
	}
}
