// Package handler provides HTTP handlers for the API.
package handler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/store"
	"github.com/patchlens/patchlens/pkg/errors"
)

// Default page sizes for list queries. Clamping to the store bounds
// happens in store.ClampLimit.
const (
	defaultListLimit   = 20
	defaultLatestLimit = 10
)

// maxSnapshotLen caps the raw-body fallback stored in a failure log when
// the request body is not valid JSON.
const maxSnapshotLen = 2048

// respondError writes the uniform error envelope {error: kind, message}.
// Unrecognized errors are reported as kind internal without leaking the
// underlying message.
func respondError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.ErrInternal("internal error", err)
	}
	c.JSON(appErr.HTTPStatus(), gin.H{
		"error":   appErr.Kind,
		"message": appErr.Message,
	})
}

// respondQueueFull writes the admission-control rejection used when the
// job queue cannot take more work.
func respondQueueFull(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":  "rejected",
		"message": "job queue is full, retry later",
	})
}

// parseIDParam reads a numeric path parameter such as a review or failure id.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondError(c, errors.Newf(errors.KindMalformed, "invalid %s %q", name, raw))
		return 0, false
	}
	return uint(id), true
}

// parseLimitQuery reads the limit query parameter, rejecting negatives and
// clamping the rest into the store bounds.
func parseLimitQuery(c *gin.Context, fallback int) (int, bool) {
	raw := c.DefaultQuery("limit", strconv.Itoa(fallback))
	limit, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, errors.Newf(errors.KindMalformed, "invalid limit %q", raw))
		return 0, false
	}
	if limit < 0 {
		respondError(c, errors.New(errors.KindMalformed, "limit must not be negative"))
		return 0, false
	}
	return store.ClampLimit(limit), true
}

// parseOffsetQuery reads the offset query parameter, rejecting negatives.
func parseOffsetQuery(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("offset", "0")
	offset, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, errors.Newf(errors.KindMalformed, "invalid offset %q", raw))
		return 0, false
	}
	if offset < 0 {
		respondError(c, errors.New(errors.KindMalformed, "offset must not be negative"))
		return 0, false
	}
	return offset, true
}

// computeContentHash returns the hex SHA-256 of content. Uploaded diffs use
// its first 40 characters as a pseudo commit id.
func computeContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// payloadSnapshot preserves a request body for failure-log forensics. Valid
// JSON is stored structurally; anything else is kept as a truncated string.
func payloadSnapshot(body []byte) model.JSONMap {
	var m model.JSONMap
	if err := json.Unmarshal(body, &m); err != nil || m == nil {
		return model.JSONMap{"raw": truncateContent(string(body), maxSnapshotLen)}
	}
	return m
}

// truncateContent shortens s to at most maxLen runes, marking the cut.
func truncateContent(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
