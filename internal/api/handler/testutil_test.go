package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/internal/engine"
	"github.com/patchlens/patchlens/internal/llm"
	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/notify"
	"github.com/patchlens/patchlens/internal/prompt"
	"github.com/patchlens/patchlens/internal/scm"
	"github.com/patchlens/patchlens/internal/store"
)

const testDiff = "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1 +1,2 @@\n package main\n+// touched\n"

type fakeSCM struct {
	diff      string
	diffErr   error
	author    scm.Author
	authorErr error

	diffCalls atomic.Int32
}

func (f *fakeSCM) FetchCommitDiff(ctx context.Context, projectKey, repoSlug, commitID string) (string, error) {
	f.diffCalls.Add(1)
	return f.diff, f.diffErr
}

func (f *fakeSCM) FetchMergeRequestDiff(ctx context.Context, projectKey, repoSlug string, mrID int64) (string, error) {
	f.diffCalls.Add(1)
	return f.diff, f.diffErr
}

func (f *fakeSCM) FetchCommitAuthor(ctx context.Context, projectKey, repoSlug, commitID string) (scm.Author, error) {
	return f.author, f.authorErr
}

func (f *fakeSCM) FetchMergeRequestAuthor(ctx context.Context, projectKey, repoSlug string, mrID int64) (scm.Author, error) {
	return f.author, f.authorErr
}

func (f *fakeSCM) Ping(ctx context.Context) error { return nil }

func (f *fakeSCM) BaseURL() string { return "http://scm.test" }

type fakeLLM struct {
	text  string
	err   error
	probe llm.ProbeResult
}

func (f *fakeLLM) ReviewDiff(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

func (f *fakeLLM) Probe(ctx context.Context) llm.ProbeResult { return f.probe }

func (f *fakeLLM) Provider() string { return "hosted_chat" }

func (f *fakeLLM) Model() string { return "test-model" }

type fakeNotifier struct {
	sendErr error
}

var _ notify.Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) Recipients(record *model.ReviewRecord) model.Recipients {
	if strings.TrimSpace(record.AuthorEmail) == "" {
		return model.Recipients{}
	}
	return model.Recipients{To: []string{record.AuthorEmail}}
}

func (f *fakeNotifier) Render(record *model.ReviewRecord) (string, string, error) {
	return notify.Subject(record), "<html></html>", nil
}

func (f *fakeNotifier) Notify(ctx context.Context, record *model.ReviewRecord) (bool, error) {
	if f.sendErr != nil {
		return false, f.sendErr
	}
	if f.Recipients(record).IsEmpty() {
		return false, nil
	}
	return true, nil
}

func (f *fakeNotifier) Ping(ctx context.Context) error { return nil }

// testEnv assembles a store, fakes and an unstarted engine. Jobs queued by
// handlers stay buffered so tests can assert admission via Stats.
type testEnv struct {
	cfg    *config.Config
	store  store.Store
	engine *engine.Engine
	scm    *fakeSCM
	llm    *fakeLLM
	notif  *fakeNotifier
}

func newTestEnv(t *testing.T, queueSize int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, cleanup := store.SetupTestDB(t)
	t.Cleanup(cleanup)

	scmC := &fakeSCM{
		diff:   testDiff,
		author: scm.Author{Name: "Dana Developer", Email: "dana@example.com"},
	}
	llmC := &fakeLLM{
		text:  "## Summary\n\nLooks good overall.",
		probe: llm.ProbeResult{OK: true, Provider: "hosted_chat", Model: "test-model"},
	}
	notif := &fakeNotifier{}

	prompts, err := prompt.NewBuilder(&config.ReviewConfig{})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Engine.QueueSize = queueSize

	eng := engine.New(cfg, s, engine.Deps{
		SCM:      scmC,
		LLM:      llmC,
		Notifier: notif,
		Prompts:  prompts,
	})

	return &testEnv{
		cfg:    cfg,
		store:  s,
		engine: eng,
		scm:    scmC,
		llm:    llmC,
		notif:  notif,
	}
}

func doRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(r *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return doRequest(r, req)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "response body: %s", w.Body.String())
	return out
}

// multipartBody builds a diff-upload request body with the given file and
// form fields.
func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func allReviews(t *testing.T, s store.Store) []model.ReviewRecord {
	t.Helper()
	records, _, err := s.Reviews().List(0, 100)
	require.NoError(t, err)
	return records
}

func allFailures(t *testing.T, s store.Store) []model.FailureLog {
	t.Helper()
	entries, _, err := s.Failures().List(store.FailureFilter{}, 0, 100)
	require.NoError(t, err)
	return entries
}
