package scm

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// REST API root on the source-control server
const apiBasePath = "/rest/api/1.0"

// MaxDiffBytes caps how much diff or author payload a single fetch returns.
// Larger bodies are truncated and logged, never failed.
const MaxDiffBytes = 5 * 1024 * 1024

// errorBodyLimit bounds how much of an error response lands in messages
const errorBodyLimit = 1024

type bitbucketClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a source-control client from configuration. The returned
// client applies the configured timeout to every request and maps HTTP and
// network failures onto the application error kinds.
func NewClient(cfg *config.SCMConfig) (Client, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New(errors.KindConfigInvalid, "scm base URL is required")
	}

	tlsConfig := &tls.Config{}
	if !cfg.SSLVerify {
		tlsConfig.InsecureSkipVerify = true
		logger.Warn("SCM client configured with ssl_verify=false, TLS certificate verification is disabled")
	}
	if cfg.CABundlePath != "" {
		pem, err := os.ReadFile(cfg.CABundlePath)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfigInvalid, "failed to read CA bundle", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Newf(errors.KindConfigInvalid, "no certificates found in CA bundle %s", cfg.CABundlePath)
		}
		tlsConfig.RootCAs = pool
	}

	return &bitbucketClient{
		baseURL: baseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: tlsConfig,
			},
		},
		logger: logger.Named("scm"),
	}, nil
}

// BaseURL returns the configured server base URL
func (c *bitbucketClient) BaseURL() string {
	return c.baseURL
}

// FetchCommitDiff returns the unified diff for a single commit
func (c *bitbucketClient) FetchCommitDiff(ctx context.Context, projectKey, repoSlug, commitID string) (string, error) {
	path := fmt.Sprintf("%s/projects/%s/repos/%s/commits/%s/diff",
		apiBasePath, url.PathEscape(projectKey), url.PathEscape(repoSlug), url.PathEscape(commitID))
	return c.fetchDiff(ctx, "commit_diff", path)
}

// FetchMergeRequestDiff returns the unified diff for a pull request
func (c *bitbucketClient) FetchMergeRequestDiff(ctx context.Context, projectKey, repoSlug string, mrID int64) (string, error) {
	path := fmt.Sprintf("%s/projects/%s/repos/%s/pull-requests/%d.diff",
		apiBasePath, url.PathEscape(projectKey), url.PathEscape(repoSlug), mrID)
	return c.fetchDiff(ctx, "mr_diff", path)
}

func (c *bitbucketClient) fetchDiff(ctx context.Context, operation, path string) (string, error) {
	start := time.Now()
	body, err := c.get(ctx, path, "text/plain")
	telemetry.GetMetrics().RecordSCMRequest(ctx, operation, err == nil, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchCommitAuthor resolves the author of a commit
func (c *bitbucketClient) FetchCommitAuthor(ctx context.Context, projectKey, repoSlug, commitID string) (Author, error) {
	path := fmt.Sprintf("%s/projects/%s/repos/%s/commits/%s",
		apiBasePath, url.PathEscape(projectKey), url.PathEscape(repoSlug), url.PathEscape(commitID))

	start := time.Now()
	body, err := c.get(ctx, path, "application/json")
	telemetry.GetMetrics().RecordSCMRequest(ctx, "commit_author", err == nil, time.Since(start).Seconds())
	if err != nil {
		return Author{}, err
	}

	var payload struct {
		Author struct {
			Name         string `json:"name"`
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
		} `json:"author"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Author{}, errors.Wrap(errors.KindMalformed, "failed to parse commit response", err)
	}

	author := Author{
		Name:  payload.Author.DisplayName,
		Email: payload.Author.EmailAddress,
	}
	if author.Name == "" {
		author.Name = payload.Author.Name
	}
	return author, nil
}

// FetchMergeRequestAuthor resolves the author of a pull request
func (c *bitbucketClient) FetchMergeRequestAuthor(ctx context.Context, projectKey, repoSlug string, mrID int64) (Author, error) {
	path := fmt.Sprintf("%s/projects/%s/repos/%s/pull-requests/%d",
		apiBasePath, url.PathEscape(projectKey), url.PathEscape(repoSlug), mrID)

	start := time.Now()
	body, err := c.get(ctx, path, "application/json")
	telemetry.GetMetrics().RecordSCMRequest(ctx, "mr_author", err == nil, time.Since(start).Seconds())
	if err != nil {
		return Author{}, err
	}

	var payload struct {
		Author struct {
			User struct {
				Name         string `json:"name"`
				DisplayName  string `json:"displayName"`
				EmailAddress string `json:"emailAddress"`
			} `json:"user"`
		} `json:"author"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Author{}, errors.Wrap(errors.KindMalformed, "failed to parse pull request response", err)
	}

	author := Author{
		Name:  payload.Author.User.DisplayName,
		Email: payload.Author.User.EmailAddress,
	}
	if author.Name == "" {
		author.Name = payload.Author.User.Name
	}
	return author, nil
}

// Ping verifies connectivity and credentials against the server
func (c *bitbucketClient) Ping(ctx context.Context) error {
	start := time.Now()
	_, err := c.get(ctx, apiBasePath+"/application-properties", "application/json")
	telemetry.GetMetrics().RecordSCMRequest(ctx, "ping", err == nil, time.Since(start).Seconds())
	return err
}

// get performs an authenticated GET and returns the response body, truncated
// to MaxDiffBytes. Non-2xx statuses and network failures come back as typed
// application errors.
func (c *bitbucketClient) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, statusError(resp.StatusCode, path, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDiffBytes+1))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if len(body) > MaxDiffBytes {
		c.logger.Warn("Response body exceeded size ceiling, truncating",
			zap.String("path", path),
			zap.Int("limit_bytes", MaxDiffBytes),
		)
		body = body[:MaxDiffBytes]
	}
	return body, nil
}

// statusError maps an HTTP status onto the application error kinds
func statusError(status int, path string, snippet []byte) error {
	switch {
	case status == http.StatusNotFound:
		return errors.Newf(errors.KindNotFound, "resource not found: %s", path)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.KindUnauthorized, "authentication rejected with status %d", status)
	case status >= 500:
		return errors.Newf(errors.KindUpstream5xx, "server error %d: %s", status, strings.TrimSpace(string(snippet)))
	default:
		return errors.Newf(errors.KindTransport, "unexpected status %d: %s", status, strings.TrimSpace(string(snippet)))
	}
}

// classifyTransportError distinguishes timeouts and cancellation from
// plain network or TLS failures
func classifyTransportError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.KindTimeout, "request timed out", err)
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.Wrap(errors.KindCancelled, "request cancelled", err)
	}
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) && urlErr.Timeout() {
		return errors.Wrap(errors.KindTimeout, "request timed out", err)
	}
	return errors.Wrap(errors.KindTransport, "request failed", err)
}
