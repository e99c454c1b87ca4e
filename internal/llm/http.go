package llm

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/patchlens/patchlens/pkg/errors"
)

// MaxResponseBytes caps how much provider response body a single call reads.
// A body over the ceiling cannot be decoded reliably and is rejected.
const MaxResponseBytes = 10 * 1024 * 1024

// errorBodyLimit bounds how much of an error response lands in messages
const errorBodyLimit = 1024

// postJSON sends a JSON POST with optional bearer auth and returns the
// response body. HTTP and network failures come back as typed application
// errors.
func postJSON(ctx context.Context, client *http.Client, endpoint, apiKey string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, statusError(resp.StatusCode, snippet)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if len(respBody) > MaxResponseBytes {
		return nil, errors.Newf(errors.KindMalformed, "provider response exceeded %d bytes", MaxResponseBytes)
	}
	return respBody, nil
}

// statusError maps an HTTP status onto the application error kinds
func statusError(status int, snippet []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.KindUnauthorized, "provider rejected credentials with status %d", status)
	case status >= 500:
		return errors.Newf(errors.KindUpstream5xx, "provider error %d: %s", status, strings.TrimSpace(string(snippet)))
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
