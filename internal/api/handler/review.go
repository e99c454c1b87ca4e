package handler

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/engine"
	"github.com/patchlens/patchlens/internal/export"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/store"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
)

// maxDiffUploadBytes is the inclusive ceiling for uploaded diff files.
// A file of exactly this size is accepted.
const maxDiffUploadBytes = 10 << 20

// diffFileExtensions lists the upload extensions accepted by ReviewDiff.
var diffFileExtensions = map[string]bool{
	".diff":  true,
	".patch": true,
}

// ReviewHandler serves manual review submission and the review query
// surface.
type ReviewHandler struct {
	engine   *engine.Engine
	store    store.Store
	exporter *export.Exporter
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(e *engine.Engine, s store.Store, exp *export.Exporter) *ReviewHandler {
	return &ReviewHandler{
		engine:   e,
		store:    s,
		exporter: exp,
	}
}

// ManualReviewRequest is the body of POST /manual-review. Exactly one of
// CommitID and MergeReqID must be set.
type ManualReviewRequest struct {
	ProjectKey string `json:"project_key" binding:"required"`
	RepoSlug   string `json:"repo_slug" binding:"required"`
	CommitID   string `json:"commit_id"`
	MergeReqID int64  `json:"mr_id"`
}

// ManualReview handles POST /manual-review. The pipeline runs on the
// request goroutine so the caller gets the review text in the response.
func (h *ReviewHandler) ManualReview(c *gin.Context) {
	var req ManualReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.Wrap(errors.KindMissingField, "project_key and repo_slug are required", err)
		h.logManualIngressFailure(model.JSONMap{}, appErr, "", "")
		respondError(c, appErr)
		return
	}

	payload := model.JSONMap{
		"project_key": req.ProjectKey,
		"repo_slug":   req.RepoSlug,
		"commit_id":   req.CommitID,
		"mr_id":       req.MergeReqID,
	}
	if (req.CommitID == "") == (req.MergeReqID == 0) {
		appErr := errors.New(errors.KindMissingField, "exactly one of commit_id or mr_id must be provided")
		h.logManualIngressFailure(payload, appErr, req.ProjectKey, req.RepoSlug)
		respondError(c, appErr)
		return
	}

	job := engine.NewJob(engine.TriggerManual, model.EventTypeManual)
	job.ProjectKey = req.ProjectKey
	job.RepoSlug = req.RepoSlug
	job.CommitID = req.CommitID
	job.MergeReqID = req.MergeReqID
	job.Payload = payload

	h.runSync(c, job)
}

// ReviewDiff handles POST /review-diff: a multipart upload of a unified
// diff reviewed without any SCM involvement.
func (h *ReviewHandler) ReviewDiff(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		appErr := errors.Wrap(errors.KindMissingField, "multipart field \"file\" is required", err)
		h.logManualIngressFailure(model.JSONMap{}, appErr, "", "")
		respondError(c, appErr)
		return
	}

	projectKey := c.PostForm("project_key")
	repoSlug := c.PostForm("repo_slug")
	payload := model.JSONMap{
		"project_key": projectKey,
		"repo_slug":   repoSlug,
		"filename":    fileHeader.Filename,
		"size_bytes":  fileHeader.Size,
	}

	if projectKey == "" || repoSlug == "" {
		appErr := errors.New(errors.KindMissingField, "project_key and repo_slug are required")
		h.logManualIngressFailure(payload, appErr, projectKey, repoSlug)
		respondError(c, appErr)
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !diffFileExtensions[ext] {
		appErr := errors.Newf(errors.KindWrongFileType, "unsupported file type %q, expected .diff or .patch", ext)
		h.logManualIngressFailure(payload, appErr, projectKey, repoSlug)
		respondError(c, appErr)
		return
	}

	if fileHeader.Size > maxDiffUploadBytes {
		appErr := errors.Newf(errors.KindPayloadTooLarge, "diff file exceeds the %d MiB limit", maxDiffUploadBytes>>20)
		h.logManualIngressFailure(payload, appErr, projectKey, repoSlug)
		respondError(c, appErr)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, errors.Wrap(errors.KindInternal, "failed to open uploaded file", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		respondError(c, errors.Wrap(errors.KindInternal, "failed to read uploaded file", err))
		return
	}

	job := engine.NewJob(engine.TriggerUploadedDiff, model.EventTypeManual)
	job.ProjectKey = projectKey
	job.RepoSlug = repoSlug
	// The record needs a stable id even without a real commit behind it.
	job.CommitID = computeContentHash(content)[:40]
	job.AuthorName = c.PostForm("author_name")
	job.AuthorEmail = c.PostForm("author_email")
	job.SuppliedDiff = string(content)
	if desc := c.PostForm("description"); desc != "" {
		payload["description"] = desc
	}
	job.Payload = payload

	h.runSync(c, job)
}

// runSync executes the job on the caller's goroutine and maps the outcome
// onto the response.
func (h *ReviewHandler) runSync(c *gin.Context, job *engine.Job) {
	record, err := h.engine.RunSync(c.Request.Context(), job)
	if err != nil {
		if errors.IsKind(err, errors.KindEmptyChangeSet) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "no_diff",
				"message": "change set is empty, nothing to review",
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "completed",
		"review_id":  record.ID,
		"commit_id":  record.CommitID,
		"mr_id":      record.MergeReqID,
		"feedback":   record.ReviewFeedback,
		"email_sent": record.EmailSent,
		"created_at": record.CreatedAt,
	})
}

// logManualIngressFailure records a manual submission rejected before it
// became a job.
func (h *ReviewHandler) logManualIngressFailure(payload model.JSONMap, appErr *errors.AppError, projectKey, repoSlug string) {
	entry := &model.FailureLog{
		EventType:      model.EventTypeManual,
		RequestPayload: payload,
		ProjectKey:     projectKey,
		RepoSlug:       repoSlug,
		FailureStage:   model.StageIngressValidation,
		ErrorType:      string(appErr.Kind),
		ErrorMessage:   appErr.Message,
	}
	if err := h.store.Failures().Create(entry); err != nil {
		logger.Error("Failed to persist ingress failure", zap.Error(err))
		return
	}
	logger.Warn("Manual review request rejected",
		zap.String("project_key", projectKey),
		zap.String("repo_slug", repoSlug),
		zap.String("error_type", string(appErr.Kind)))
}

// List handles GET /reviews
func (h *ReviewHandler) List(c *gin.Context) {
	offset, ok := parseOffsetQuery(c)
	if !ok {
		return
	}
	limit, ok := parseLimitQuery(c, defaultListLimit)
	if !ok {
		return
	}

	records, total, err := h.store.Reviews().List(offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   records,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// Latest handles GET /reviews/latest
func (h *ReviewHandler) Latest(c *gin.Context) {
	limit, ok := parseLimitQuery(c, defaultLatestLimit)
	if !ok {
		return
	}

	records, err := h.store.Reviews().Latest(limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// Get handles GET /reviews/:id
func (h *ReviewHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	record, err := h.store.Reviews().GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListByProject handles GET /reviews/project/:project_key
func (h *ReviewHandler) ListByProject(c *gin.Context) {
	limit, ok := parseLimitQuery(c, defaultListLimit)
	if !ok {
		return
	}

	records, err := h.store.Reviews().ListByProject(c.Param("project_key"), c.Query("repo_slug"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// ListByAuthor handles GET /reviews/author/:email
func (h *ReviewHandler) ListByAuthor(c *gin.Context) {
	limit, ok := parseLimitQuery(c, defaultListLimit)
	if !ok {
		return
	}

	records, err := h.store.Reviews().ListByAuthor(c.Param("email"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// ListByCommit handles GET /reviews/commit/:commit_id
func (h *ReviewHandler) ListByCommit(c *gin.Context) {
	records, err := h.store.Reviews().ListByCommit(c.Param("commit_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// ListByMergeRequest handles GET /reviews/pr/:mr_id
func (h *ReviewHandler) ListByMergeRequest(c *gin.Context) {
	mrID, err := strconv.ParseInt(c.Param("mr_id"), 10, 64)
	if err != nil {
		respondError(c, errors.Newf(errors.KindMalformed, "invalid mr_id %q", c.Param("mr_id")))
		return
	}

	records, err := h.store.Reviews().ListByMergeRequest(mrID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// Export handles GET /reviews/:id/export, rendering a review as a
// standalone HTML or PDF document.
func (h *ReviewHandler) Export(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.store.Reviews().GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	switch format {
	case export.FormatHTML:
		doc, err := h.exporter.HTML(record)
		if err != nil {
			logger.Error("HTML export failed", zap.Uint("review_id", id), zap.Error(err))
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=review-%d.html", id))
		c.Data(http.StatusOK, "text/html; charset=utf-8", doc)

	case export.FormatPDF:
		doc, err := h.exporter.PDF(c.Request.Context(), record)
		if err != nil {
			if stderrors.Is(err, export.ErrChromeUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error":   errors.KindInternal,
					"message": "pdf export unavailable: headless chrome is not installed",
				})
				return
			}
			logger.Error("PDF export failed", zap.Uint("review_id", id), zap.Error(err))
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=review-%d.pdf", id))
		c.Data(http.StatusOK, "application/pdf", doc)
	}
}
