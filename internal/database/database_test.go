package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/logger"
)

func TestSQLiteOptimizations(t *testing.T) {
	// Initialize logger for testing
	logger.Init(logger.Config{
		Level:  "info",
		Format: "text",
		File:   "",
	})
	defer logger.Sync()

	// Create temporary database file
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		Close()
		os.Remove(dbPath)
	}()

	// Get database connection
	db := Get()

	// Check journal_mode (should be WAL)
	var journalMode string
	result := db.Raw("PRAGMA journal_mode").Scan(&journalMode)
	if result.Error != nil {
		t.Fatalf("Failed to query journal_mode: %v", result.Error)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode to be 'wal', got '%s'", journalMode)
	}

	// Check synchronous (should be 1 for NORMAL)
	var synchronous int
	result = db.Raw("PRAGMA synchronous").Scan(&synchronous)
	if result.Error != nil {
		t.Fatalf("Failed to query synchronous: %v", result.Error)
	}
	if synchronous != 1 {
		t.Errorf("Expected synchronous to be 1 (NORMAL), got %d", synchronous)
	}

	// Check foreign_keys (should be ON)
	var foreignKeys int
	result = db.Raw("PRAGMA foreign_keys").Scan(&foreignKeys)
	if result.Error != nil {
		t.Fatalf("Failed to query foreign_keys: %v", result.Error)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys to be 1 (ON), got %d", foreignKeys)
	}

	t.Logf("SQLite optimizations verified: journal_mode=%s, synchronous=%d, foreign_keys=%d",
		journalMode, synchronous, foreignKeys)
}

// TestInit_CreatesDirectory tests that Init creates the parent directory
func TestInit_CreatesDirectory(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dir", "test.db")

	err := Init(dbPath)
	require.NoError(t, err)
	defer Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err, "parent directory should have been created")
}

// TestAutoMigrate_CreatesTables tests that both entity tables exist after Init
func TestAutoMigrate_CreatesTables(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := Init(dbPath)
	require.NoError(t, err)
	defer Close()

	db := Get()

	for _, table := range []string{"review_records", "failure_logs"} {
		var exists bool
		err := db.Raw("SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&exists).Error
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist after migration", table)
	}
}

// TestInsertAndQuery tests that the models round-trip through the database
func TestInsertAndQuery(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := Init(dbPath)
	require.NoError(t, err)
	defer Close()

	db := Get()

	record := &model.ReviewRecord{
		ReviewType:     model.ReviewTypeAuto,
		TriggerType:    model.TriggerTypeCommit,
		ProjectKey:     "ACME",
		RepoSlug:       "billing-service",
		CommitID:       "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0",
		DiffContent:    "diff --git a/main.go b/main.go",
		ReviewFeedback: "Looks good.",
		EmailRecipients: model.Recipients{
			To: []string{"dev@example.com"},
		},
		LLMProvider: "hosted_chat",
		LLMModel:    "gpt-4o-mini",
	}
	err = db.Create(record).Error
	require.NoError(t, err)
	assert.NotZero(t, record.ID)

	var loaded model.ReviewRecord
	err = db.First(&loaded, record.ID).Error
	require.NoError(t, err)
	assert.Equal(t, "ACME", loaded.ProjectKey)
	assert.Equal(t, []string{"dev@example.com"}, loaded.EmailRecipients.To)
	assert.False(t, loaded.EmailSent)

	failure := &model.FailureLog{
		EventType:    model.EventTypeWebhook,
		EventKey:     "repo:refs_changed",
		FailureStage: model.StageDiffFetch,
		ErrorType:    "not_found",
		ErrorMessage: "commit not found",
		RequestPayload: model.JSONMap{
			"eventKey": "repo:refs_changed",
		},
	}
	err = db.Create(failure).Error
	require.NoError(t, err)
	assert.NotZero(t, failure.ID)

	var loadedFailure model.FailureLog
	err = db.First(&loadedFailure, failure.ID).Error
	require.NoError(t, err)
	assert.Equal(t, model.StageDiffFetch, loadedFailure.FailureStage)
	assert.Equal(t, "repo:refs_changed", loadedFailure.RequestPayload["eventKey"])
	assert.False(t, loadedFailure.Resolved)
}

// TestTransaction tests commit and rollback behaviour
func TestTransaction(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := Init(dbPath)
	require.NoError(t, err)
	defer Close()

	// Rolled back insert must not be visible
	rollbackErr := assert.AnError
	err = Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model.FailureLog{
			EventType:    model.EventTypeManual,
			FailureStage: model.StagePersistence,
			ErrorType:    "persistence",
			ErrorMessage: "boom",
		}).Error; err != nil {
			return err
		}
		return rollbackErr
	})
	assert.ErrorIs(t, err, rollbackErr)

	var count int64
	err = Get().Model(&model.FailureLog{}).Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Committed insert is visible
	err = Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model.FailureLog{
			EventType:    model.EventTypeManual,
			FailureStage: model.StagePersistence,
			ErrorType:    "persistence",
			ErrorMessage: "boom",
		}).Error
	})
	require.NoError(t, err)

	err = Get().Model(&model.FailureLog{}).Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestHealthCheck tests the database ping
func TestHealthCheck(t *testing.T) {
	logger.Init(logger.Config{
		Level:  "error",
		Format: "text",
	})
	defer logger.Sync()

	ResetForTesting()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	err := Init(dbPath)
	require.NoError(t, err)
	defer Close()

	assert.NoError(t, HealthCheck())
}
