// Package notify renders completed reviews into HTML email and delivers
// them through the external mail endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// errorBodyLimit caps how much of an error response body is kept for messages
const errorBodyLimit = 1024

// Message is the JSON payload posted to the mail endpoint. The endpoint
// takes recipient lists as comma-separated strings.
type Message struct {
	To       string `json:"to"`
	CC       string `json:"cc"`
	Subject  string `json:"subject"`
	MailBody string `json:"mailbody"`
}

// Notifier delivers review results to the change author by email
type Notifier interface {
	// Recipients derives the recipient set for a review. An empty set means
	// the notification will be suppressed.
	Recipients(record *model.ReviewRecord) model.Recipients

	// Render produces the email subject and HTML body for a review.
	// It performs no I/O.
	Render(record *model.ReviewRecord) (subject, html string, err error)

	// Notify renders the review and posts it to the mail endpoint. It
	// reports whether an email was actually sent; suppression (no recipient,
	// opt-out, no endpoint) returns (false, nil).
	Notify(ctx context.Context, record *model.ReviewRecord) (bool, error)

	// Ping checks that the mail endpoint is reachable. Any HTTP response
	// counts as reachable; only transport-level failures are errors.
	Ping(ctx context.Context) error
}

type emailNotifier struct {
	cfg        *config.NotifierConfig
	httpClient *http.Client
	logger     *zap.Logger
	md         goldmark.Markdown
}

// New creates a Notifier backed by the configured HTTP mail endpoint
func New(cfg *config.NotifierConfig) Notifier {
	return &emailNotifier{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		logger: logger.Named("notify"),
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Recipients returns the author address plus the configured cc, or an empty
// set when the author email is unknown
func (n *emailNotifier) Recipients(record *model.ReviewRecord) model.Recipients {
	email := strings.TrimSpace(record.AuthorEmail)
	if email == "" {
		return model.Recipients{}
	}
	recipients := model.Recipients{To: []string{email}}
	if cc := strings.TrimSpace(n.cfg.CCAddress); cc != "" && !strings.EqualFold(cc, email) {
		recipients.CC = []string{cc}
	}
	return recipients
}

// Notify sends the rendered review to the recipients stored on the record.
// The review is always rendered, even when the send is suppressed, so that
// rendering problems surface regardless of delivery settings.
func (n *emailNotifier) Notify(ctx context.Context, record *model.ReviewRecord) (bool, error) {
	subject, html, err := n.Render(record)
	if err != nil {
		return false, err
	}

	if record.EmailRecipients.IsEmpty() {
		n.logger.Info("Notification suppressed, author email unknown",
			zap.Uint("review_id", record.ID),
			zap.String("project_key", record.ProjectKey),
			zap.String("repo_slug", record.RepoSlug),
		)
		return false, nil
	}

	if n.cfg.OptOut {
		n.logger.Info("Notification opt-out enabled, not sending",
			zap.Uint("review_id", record.ID),
			zap.Strings("to", record.EmailRecipients.To),
		)
		return false, nil
	}

	if n.cfg.Endpoint == "" {
		n.logger.Info("Notifier endpoint not configured, not sending",
			zap.Uint("review_id", record.ID),
		)
		return false, nil
	}

	msg := Message{
		To:       strings.Join(record.EmailRecipients.To, ","),
		CC:       strings.Join(record.EmailRecipients.CC, ","),
		Subject:  subject,
		MailBody: html,
	}

	err = n.send(ctx, msg)
	telemetry.GetMetrics().RecordNotification(ctx, err == nil)
	if err != nil {
		return false, err
	}

	n.logger.Info("Review notification sent",
		zap.Uint("review_id", record.ID),
		zap.String("to", msg.To),
		zap.String("subject", subject),
	)
	return true, nil
}

func (n *emailNotifier) send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(errors.KindInternal, "failed to marshal mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.KindInternal, "failed to create mail request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			return errors.Wrap(errors.KindTimeout, "mail endpoint request timed out", err)
		case stderrors.Is(err, context.Canceled):
			return errors.Wrap(errors.KindCancelled, "mail endpoint request cancelled", err)
		default:
			return errors.Wrap(errors.KindTransport, "mail endpoint request failed", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		kind := errors.KindTransport
		if resp.StatusCode >= 500 {
			kind = errors.KindUpstream5xx
		}
		return errors.Newf(kind, "mail endpoint returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Ping probes the mail endpoint with a GET request
func (n *emailNotifier) Ping(ctx context.Context) error {
	if n.cfg.Endpoint == "" {
		return errors.New(errors.KindConfigInvalid, "NOTIFIER_ENDPOINT is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.Endpoint, nil)
	if err != nil {
		return errors.Wrap(errors.KindInternal, "failed to create probe request", err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindTransport,
			fmt.Sprintf("mail endpoint unreachable: %s", n.cfg.Endpoint), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
	return nil
}
