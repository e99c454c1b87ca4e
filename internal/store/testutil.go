// Package store provides test utilities for database testing.
package store

import (
	"crypto/sha256"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/patchlens/patchlens/internal/database"
	"github.com/patchlens/patchlens/internal/model"
)

// SetupTestDB creates a file-backed SQLite database for testing.
// It returns a Store instance and a cleanup function.
// The cleanup function should be called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	// Reset database state to allow re-initialization
	database.ResetForTesting()

	// Create temporary database file
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	// Initialize database with temp path
	if err := database.Init(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.Get()
	store := NewStore(db)

	// Cleanup function
	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
	}

	return store, cleanup
}

// CreateTestReview creates a test ReviewRecord with default values.
// Fields can be overridden by passing a function that modifies the record.
func CreateTestReview(t *testing.T, store Store, overrides ...func(*model.ReviewRecord)) *model.ReviewRecord {
	// Derive a unique commit id per test invocation
	seed := t.Name() + "-" + time.Now().Format("150405.000000")
	commitID := fmt.Sprintf("%x", sha256.Sum256([]byte(seed)))[:40]

	record := &model.ReviewRecord{
		ReviewType:     model.ReviewTypeAuto,
		TriggerType:    model.TriggerTypeCommit,
		ProjectKey:     "ACME",
		RepoSlug:       "billing-service",
		CommitID:       commitID,
		AuthorName:     "Dev Eloper",
		AuthorEmail:    "dev@example.com",
		DiffContent:    "diff --git a/main.go b/main.go\n+fmt.Println(\"hi\")",
		ReviewFeedback: "## Review\n\nLooks fine.",
		LLMProvider:    "hosted_chat",
		LLMModel:       "gpt-4o-mini",
	}

	// Apply overrides
	for _, override := range overrides {
		override(record)
	}

	if err := store.Reviews().Create(record); err != nil {
		t.Fatalf("Failed to create test review: %v", err)
	}

	return record
}

// CreateTestFailure creates a test FailureLog with default values.
func CreateTestFailure(t *testing.T, store Store, overrides ...func(*model.FailureLog)) *model.FailureLog {
	log := &model.FailureLog{
		EventType:    model.EventTypeWebhook,
		EventKey:     "repo:refs_changed",
		FailureStage: model.StageDiffFetch,
		ErrorType:    "not_found",
		ErrorMessage: "commit not found",
		ProjectKey:   "ACME",
		RepoSlug:     "billing-service",
		CommitID:     "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0",
		RequestPayload: model.JSONMap{
			"eventKey": "repo:refs_changed",
		},
	}

	// Apply overrides
	for _, override := range overrides {
		override(log)
	}

	if err := store.Failures().Create(log); err != nil {
		t.Fatalf("Failed to create test failure: %v", err)
	}

	return log
}
