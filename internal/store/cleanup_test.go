package store

import (
	"testing"
	"time"

	"github.com/patchlens/patchlens/internal/model"
)

func seedFailureAt(t *testing.T, s Store, resolved bool, createdAt time.Time) uint {
	t.Helper()

	entry := &model.FailureLog{
		EventType:    model.EventTypeWebhook,
		EventKey:     "repo:refs_changed",
		ProjectKey:   "ACME",
		RepoSlug:     "billing-service",
		CommitID:     "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0",
		FailureStage: model.StageDiffFetch,
		ErrorType:    "transport",
		ErrorMessage: "connection refused",
	}
	if err := s.Failures().Create(entry); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if resolved {
		if err := s.Failures().MarkResolved(entry.ID, "handled"); err != nil {
			t.Fatalf("MarkResolved() failed: %v", err)
		}
	}
	// Backdate after the writes above so neither resets the timestamp.
	if err := s.DB().Model(&model.FailureLog{}).Where("id = ?", entry.ID).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("failed to backdate failure: %v", err)
	}
	return entry.ID
}

// TestFailureCleanupService_Sweep tests that only old resolved rows are purged
func TestFailureCleanupService_Sweep(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	oldTime := time.Now().AddDate(0, 0, -90)
	oldResolved := seedFailureAt(t, store, true, oldTime)
	freshResolved := seedFailureAt(t, store, true, time.Now())
	oldUnresolved := seedFailureAt(t, store, false, oldTime)

	svc := NewFailureCleanupService(store.Failures(), 30)
	svc.cleanup()

	if _, err := store.Failures().GetByID(oldResolved); err == nil {
		t.Error("Expected old resolved failure to be purged")
	}
	if _, err := store.Failures().GetByID(freshResolved); err != nil {
		t.Errorf("Expected fresh resolved failure to survive: %v", err)
	}
	if _, err := store.Failures().GetByID(oldUnresolved); err != nil {
		t.Errorf("Expected old unresolved failure to survive: %v", err)
	}
}

// TestFailureCleanupService_Disabled tests that zero retention disables the sweep
func TestFailureCleanupService_Disabled(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	svc := NewFailureCleanupService(store.Failures(), 0)
	if svc.Enabled() {
		t.Error("Expected zero retention to disable the sweep")
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start() on a disabled service failed: %v", err)
	}
	svc.Stop()
}

// TestFailureCleanupService_StartStop tests the scheduler lifecycle
func TestFailureCleanupService_StartStop(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	svc := NewFailureCleanupService(store.Failures(), 30)
	if !svc.Enabled() {
		t.Fatal("Expected positive retention to enable the sweep")
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	svc.Stop()
}
