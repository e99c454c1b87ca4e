package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchlens/patchlens/internal/export"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/errors"
)

func (env *testEnv) reviewRouter() *gin.Engine {
	r := gin.New()
	h := NewReviewHandler(env.engine, env.store, export.New())
	r.POST("/manual-review", h.ManualReview)
	r.POST("/review-diff", h.ReviewDiff)
	r.GET("/reviews", h.List)
	r.GET("/reviews/latest", h.Latest)
	r.GET("/reviews/:id", h.Get)
	r.GET("/reviews/:id/export", h.Export)
	r.GET("/reviews/project/:project_key", h.ListByProject)
	r.GET("/reviews/author/:email", h.ListByAuthor)
	r.GET("/reviews/commit/:commit_id", h.ListByCommit)
	r.GET("/reviews/pr/:mr_id", h.ListByMergeRequest)
	return r
}

func TestManualReviewCommit(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := doJSON(r, http.MethodPost, "/manual-review", gin.H{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
		"commit_id":   "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody(t, w)
	assert.Equal(t, "completed", resp["status"])
	assert.Equal(t, env.llm.text, resp["feedback"])
	assert.Equal(t, true, resp["email_sent"])

	records := allReviews(t, env.store)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, model.ReviewTypeManual, rec.ReviewType)
	assert.Equal(t, model.TriggerTypeCommit, rec.TriggerType)
	assert.Equal(t, "ACME", rec.ProjectKey)
	assert.Equal(t, testDiff, rec.DiffContent)
	assert.True(t, rec.EmailSent)
}

func TestManualReviewMergeRequest(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := doJSON(r, http.MethodPost, "/manual-review", gin.H{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
		"mr_id":       42,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	records := allReviews(t, env.store)
	require.Len(t, records, 1)
	assert.Equal(t, model.TriggerTypePullRequest, records[0].TriggerType)
	assert.Equal(t, int64(42), records[0].MergeReqID)
}

func TestManualReviewIDValidation(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	tests := []struct {
		name string
		body gin.H
	}{
		{"neither id", gin.H{"project_key": "ACME", "repo_slug": "billing-service"}},
		{"both ids", gin.H{
			"project_key": "ACME",
			"repo_slug":   "billing-service",
			"commit_id":   "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
			"mr_id":       42,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/manual-review", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "missing_field", decodeBody(t, w)["error"])
		})
	}

	failures := allFailures(t, env.store)
	require.Len(t, failures, 2)
	for _, f := range failures {
		assert.Equal(t, model.StageIngressValidation, f.FailureStage)
		assert.Equal(t, model.EventTypeManual, f.EventType)
	}
	assert.Empty(t, allReviews(t, env.store))
}

func TestManualReviewMissingCoordinates(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := doJSON(r, http.MethodPost, "/manual-review", gin.H{"commit_id": "abc"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_field", decodeBody(t, w)["error"])
}

func TestManualReviewEmptyChangeSet(t *testing.T) {
	env := newTestEnv(t, 8)
	env.scm.diff = "   \n\t  "
	r := env.reviewRouter()

	w := doJSON(r, http.MethodPost, "/manual-review", gin.H{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
		"commit_id":   "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8c9d0",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no_diff", decodeBody(t, w)["status"])

	assert.Empty(t, allReviews(t, env.store))
	assert.Empty(t, allFailures(t, env.store))
}

func TestManualReviewPipelineError(t *testing.T) {
	env := newTestEnv(t, 8)
	env.scm.diffErr = errors.New(errors.KindNotFound, "commit not found")
	r := env.reviewRouter()

	w := doJSON(r, http.MethodPost, "/manual-review", gin.H{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
		"commit_id":   "ffffffffffffffffffffffffffffffffffffffff",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeBody(t, w)["error"])

	failures := allFailures(t, env.store)
	require.Len(t, failures, 1)
	assert.Equal(t, model.StageDiffFetch, failures[0].FailureStage)
	assert.Equal(t, "not_found", failures[0].ErrorType)
}

func postDiffUpload(t *testing.T, r *gin.Engine, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	buf, contentType := multipartBody(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/review-diff", buf)
	req.Header.Set("Content-Type", contentType)
	return doRequest(r, req)
}

func TestReviewDiffUpload(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := postDiffUpload(t, r, "fix.diff", testDiff, map[string]string{
		"project_key":  "ACME",
		"repo_slug":    "billing-service",
		"author_name":  "Dana Developer",
		"author_email": "dana@example.com",
		"description":  "hotfix for rounding",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody(t, w)
	assert.Equal(t, "completed", resp["status"])

	wantCommit := computeContentHash([]byte(testDiff))[:40]
	assert.Equal(t, wantCommit, resp["commit_id"])

	records := allReviews(t, env.store)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, wantCommit, rec.CommitID)
	assert.Equal(t, model.ReviewTypeManual, rec.ReviewType)
	assert.Equal(t, testDiff, rec.DiffContent)
	assert.Equal(t, "Dana Developer", rec.AuthorName)
	assert.True(t, rec.EmailSent)

	// The diff came from the upload, not the SCM.
	assert.Equal(t, int32(0), env.scm.diffCalls.Load())
}

func TestReviewDiffUploadPatchExtension(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := postDiffUpload(t, r, "Fix.PATCH", testDiff, map[string]string{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestReviewDiffUploadWrongFileType(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := postDiffUpload(t, r, "notes.txt", "hello", map[string]string{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
	})
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "wrong_file_type", decodeBody(t, w)["error"])

	failures := allFailures(t, env.store)
	require.Len(t, failures, 1)
	assert.Equal(t, "wrong_file_type", failures[0].ErrorType)
	assert.Equal(t, model.StageIngressValidation, failures[0].FailureStage)
}

func TestReviewDiffUploadSizeCeiling(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	fields := map[string]string{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
	}

	t.Run("exactly at the limit is accepted", func(t *testing.T) {
		content := strings.Repeat("a", maxDiffUploadBytes)
		w := postDiffUpload(t, r, "big.diff", content, fields)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("one byte over is rejected", func(t *testing.T) {
		content := strings.Repeat("a", maxDiffUploadBytes+1)
		w := postDiffUpload(t, r, "huge.diff", content, fields)
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "payload_too_large", decodeBody(t, w)["error"])

		failures := allFailures(t, env.store)
		require.Len(t, failures, 1)
		assert.Equal(t, model.StageIngressValidation, failures[0].FailureStage)
		assert.Equal(t, "payload_too_large", failures[0].ErrorType)
	})
}

func TestReviewDiffUploadMissingFile(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := postDiffUpload(t, r, "", "", map[string]string{
		"project_key": "ACME",
		"repo_slug":   "billing-service",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_field", decodeBody(t, w)["error"])
}

func TestReviewDiffUploadMissingCoordinates(t *testing.T) {
	env := newTestEnv(t, 8)
	r := env.reviewRouter()

	w := postDiffUpload(t, r, "fix.diff", testDiff, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_field", decodeBody(t, w)["error"])

	failures := allFailures(t, env.store)
	require.Len(t, failures, 1)
	assert.Equal(t, "fix.diff", failures[0].RequestPayload["filename"])
}
