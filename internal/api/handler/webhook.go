package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/internal/engine"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/store"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
)

// signatureHeader carries the HMAC of the raw body, hex-encoded and
// prefixed with the digest algorithm.
const (
	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// Event keys the source-control server sends. Anything else is
// acknowledged and dropped.
const (
	eventPROpened      = "pr:opened"
	eventPRFromUpdated = "pr:from_ref_updated"
	eventRefsChanged   = "repo:refs_changed"
)

// WebhookHandler ingests source-control events and turns them into
// review jobs.
type WebhookHandler struct {
	engine *engine.Engine
	store  store.Store
	secret string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(e *engine.Engine, s store.Store, cfg *config.WebhookConfig) *WebhookHandler {
	return &WebhookHandler{
		engine: e,
		store:  s,
		secret: cfg.Secret,
	}
}

// Handle processes POST /webhook/code-review. The raw body is read before
// any parsing so the signature covers exactly the bytes on the wire.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, errors.Wrap(errors.KindMalformed, "failed to read request body", err))
		return
	}

	if h.secret != "" && !h.verifySignature(c.GetHeader(signatureHeader), body) {
		// Unauthenticated senders get no failure-log row; a flood of junk
		// deliveries must not fill the audit table.
		logger.Warn("Webhook signature verification failed",
			zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   errors.KindUnauthorized,
			"message": "invalid webhook signature",
		})
		return
	}

	var probe struct {
		EventKey string `json:"eventKey"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		appErr := errors.Wrap(errors.KindMalformed, "webhook body is not valid JSON", err)
		h.logIngressFailure(c, "", body, appErr, nil)
		respondError(c, appErr)
		return
	}

	switch probe.EventKey {
	case eventPROpened, eventPRFromUpdated:
		h.handleMergeRequest(c, probe.EventKey, body)
	case eventRefsChanged:
		h.handlePush(c, probe.EventKey, body)
	default:
		logger.Debug("Ignoring webhook event", zap.String("event_key", probe.EventKey))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

// verifySignature checks the hex HMAC-SHA256 of body against the header
// value under a constant-time compare.
func (h *WebhookHandler) verifySignature(header string, body []byte) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimPrefix(header, signaturePrefix)), []byte(expected))
}

// handleMergeRequest enqueues one job for a pull request event.
func (h *WebhookHandler) handleMergeRequest(c *gin.Context, eventKey string, body []byte) {
	var payload struct {
		PullRequest struct {
			ID     int64 `json:"id"`
			Author struct {
				User struct {
					Name         string `json:"name"`
					DisplayName  string `json:"displayName"`
					EmailAddress string `json:"emailAddress"`
				} `json:"user"`
			} `json:"author"`
			ToRef struct {
				Repository struct {
					Slug    string `json:"slug"`
					Project struct {
						Key string `json:"key"`
					} `json:"project"`
				} `json:"repository"`
			} `json:"toRef"`
		} `json:"pullRequest"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		appErr := errors.Wrap(errors.KindMalformed, "failed to parse pull request payload", err)
		h.logIngressFailure(c, eventKey, body, appErr, nil)
		respondError(c, appErr)
		return
	}

	pr := payload.PullRequest
	repo := pr.ToRef.Repository
	if repo.Project.Key == "" || repo.Slug == "" || pr.ID == 0 {
		appErr := errors.New(errors.KindMissingField, "pull request payload lacks repository coordinates or id")
		h.logIngressFailure(c, eventKey, body, appErr, &ingressContext{
			ProjectKey: repo.Project.Key,
			RepoSlug:   repo.Slug,
			MergeReqID: pr.ID,
		})
		respondError(c, appErr)
		return
	}

	job := engine.NewJob(engine.TriggerWebhook, model.EventTypeWebhook)
	job.EventKey = eventKey
	job.ProjectKey = repo.Project.Key
	job.RepoSlug = repo.Slug
	job.MergeReqID = pr.ID
	job.AuthorName = pr.Author.User.DisplayName
	if job.AuthorName == "" {
		job.AuthorName = pr.Author.User.Name
	}
	job.AuthorEmail = pr.Author.User.EmailAddress
	job.Payload = payloadSnapshot(body)

	if err := h.engine.Enqueue(c.Request.Context(), job); err != nil {
		respondQueueFull(c)
		return
	}

	logger.Info("Webhook pull request event accepted",
		zap.String("event_key", eventKey),
		zap.String("project_key", job.ProjectKey),
		zap.String("repo_slug", job.RepoSlug),
		zap.Int64("mr_id", job.MergeReqID))
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "jobs": 1})
}

// handlePush enqueues one job per pushed commit. The batch is admitted
// atomically so a full queue never reviews half a push.
func (h *WebhookHandler) handlePush(c *gin.Context, eventKey string, body []byte) {
	var payload struct {
		Actor struct {
			Name         string `json:"name"`
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
		} `json:"actor"`
		Repository struct {
			Slug    string `json:"slug"`
			Project struct {
				Key string `json:"key"`
			} `json:"project"`
		} `json:"repository"`
		Changes []struct {
			Ref struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			} `json:"ref"`
			ToHash string `json:"toHash"`
			Type   string `json:"type"`
		} `json:"changes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		appErr := errors.Wrap(errors.KindMalformed, "failed to parse push payload", err)
		h.logIngressFailure(c, eventKey, body, appErr, nil)
		respondError(c, appErr)
		return
	}

	repo := payload.Repository
	if repo.Project.Key == "" || repo.Slug == "" {
		appErr := errors.New(errors.KindMissingField, "push payload lacks repository coordinates")
		h.logIngressFailure(c, eventKey, body, appErr, nil)
		respondError(c, appErr)
		return
	}

	authorName := payload.Actor.DisplayName
	if authorName == "" {
		authorName = payload.Actor.Name
	}

	snapshot := payloadSnapshot(body)
	var jobs []*engine.Job
	for _, change := range payload.Changes {
		// Tag updates and branch deletions carry nothing reviewable.
		if change.Ref.Type != "BRANCH" || change.Type == "DELETE" || change.ToHash == "" {
			continue
		}
		job := engine.NewJob(engine.TriggerWebhook, model.EventTypeWebhook)
		job.EventKey = eventKey
		job.ProjectKey = repo.Project.Key
		job.RepoSlug = repo.Slug
		job.CommitID = change.ToHash
		job.AuthorName = authorName
		job.AuthorEmail = payload.Actor.EmailAddress
		job.Payload = snapshot
		jobs = append(jobs, job)
	}

	if err := h.engine.EnqueueAll(c.Request.Context(), jobs); err != nil {
		respondQueueFull(c)
		return
	}

	logger.Info("Webhook push event accepted",
		zap.String("project_key", repo.Project.Key),
		zap.String("repo_slug", repo.Slug),
		zap.Int("jobs", len(jobs)))
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "jobs": len(jobs)})
}

// ingressContext carries whatever coordinates an invalid payload did
// contain, so the failure row is as searchable as possible.
type ingressContext struct {
	ProjectKey string
	RepoSlug   string
	CommitID   string
	MergeReqID int64
}

// logIngressFailure records a rejected authenticated delivery. The original
// body is preserved in request_payload for replay and diagnosis.
func (h *WebhookHandler) logIngressFailure(c *gin.Context, eventKey string, body []byte, appErr *errors.AppError, ictx *ingressContext) {
	entry := &model.FailureLog{
		EventType:      model.EventTypeWebhook,
		EventKey:       eventKey,
		RequestPayload: payloadSnapshot(body),
		FailureStage:   model.StageIngressValidation,
		ErrorType:      string(appErr.Kind),
		ErrorMessage:   appErr.Message,
	}
	if ictx != nil {
		entry.ProjectKey = ictx.ProjectKey
		entry.RepoSlug = ictx.RepoSlug
		entry.CommitID = ictx.CommitID
		entry.MergeReqID = ictx.MergeReqID
	}
	if err := h.store.Failures().Create(entry); err != nil {
		logger.Error("Failed to persist ingress failure", zap.Error(err))
		return
	}
	logger.Warn("Webhook payload rejected",
		zap.String("event_key", eventKey),
		zap.String("error_type", string(appErr.Kind)),
		zap.String("client_ip", c.ClientIP()))
}
