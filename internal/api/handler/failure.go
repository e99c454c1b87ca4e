package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/engine"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/store"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
)

// FailureHandler serves the failure-log query and operator surface.
type FailureHandler struct {
	engine *engine.Engine
	store  store.Store
}

// NewFailureHandler creates a new failure handler
func NewFailureHandler(e *engine.Engine, s store.Store) *FailureHandler {
	return &FailureHandler{engine: e, store: s}
}

// List handles GET /failures
func (h *FailureHandler) List(c *gin.Context) {
	offset, ok := parseOffsetQuery(c)
	if !ok {
		return
	}
	limit, ok := parseLimitQuery(c, defaultListLimit)
	if !ok {
		return
	}

	filter := store.FailureFilter{
		Stage: model.FailureStage(c.Query("stage")),
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, errors.Newf(errors.KindMalformed, "invalid resolved flag %q", raw))
			return
		}
		filter.Resolved = &resolved
	}

	entries, total, err := h.store.Failures().List(filter, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   entries,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// Get handles GET /failures/:id
func (h *FailureHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.store.Failures().GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ResolveRequest is the body of PATCH /failures/:id/resolve.
type ResolveRequest struct {
	Notes string `json:"notes"`
}

// Resolve handles PATCH /failures/:id/resolve
func (h *FailureHandler) Resolve(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// Notes are optional; an empty body resolves without them.
	var req ResolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.Wrap(errors.KindMalformed, "invalid request body", err))
			return
		}
	}

	if err := h.store.Failures().MarkResolved(id, req.Notes); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Failure resolved", zap.Uint("failure_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "resolved", "failure_id": id})
}

// Retry handles POST /failures/:id/retry. A failure is retryable when it
// kept enough coordinates to rebuild the job.
func (h *FailureHandler) Retry(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.store.Failures().GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	if !entry.Retryable() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   errors.KindMissingField,
			"message": "failure log lacks the coordinates needed to rebuild the job",
		})
		return
	}

	job := engine.NewJob(engine.TriggerManual, entry.EventType)
	job.EventKey = entry.EventKey
	job.ProjectKey = entry.ProjectKey
	job.RepoSlug = entry.RepoSlug
	job.CommitID = entry.CommitID
	job.MergeReqID = entry.MergeReqID
	job.AuthorName = entry.AuthorName
	job.AuthorEmail = entry.AuthorEmail
	job.Payload = entry.RequestPayload

	if err := h.engine.Enqueue(c.Request.Context(), job); err != nil {
		respondQueueFull(c)
		return
	}

	if err := h.store.Failures().IncrementRetryCount(id); err != nil {
		logger.Error("Failed to bump retry count", zap.Uint("failure_id", id), zap.Error(err))
	}

	logger.Info("Failure retry enqueued",
		zap.Uint("failure_id", id),
		zap.String("project_key", entry.ProjectKey),
		zap.String("repo_slug", entry.RepoSlug))
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "failure_id": id})
}
