// Package store provides data access operations for all models.
package store

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/pkg/logger"
)

// FailureCleanupSchedule is the cron schedule for the retention sweep (daily at 2 AM)
const FailureCleanupSchedule = "0 2 * * *"

// FailureCleanupService periodically purges resolved failure logs older
// than the configured retention period. It only touches resolved rows;
// unresolved failures stay until an operator deals with them.
type FailureCleanupService struct {
	store         FailureStore
	cron          *cron.Cron
	retentionDays int
	entryID       cron.EntryID
	mu            sync.RWMutex
}

// NewFailureCleanupService creates a new retention sweep service.
// retentionDays <= 0 disables the sweep; Start and Stop become no-ops.
func NewFailureCleanupService(store FailureStore, retentionDays int) *FailureCleanupService {
	svc := &FailureCleanupService{
		store:         store,
		retentionDays: retentionDays,
	}
	if retentionDays > 0 {
		svc.cron = cron.New()
	}
	return svc
}

// Enabled reports whether the sweep is configured to run.
func (s *FailureCleanupService) Enabled() bool {
	return s.cron != nil
}

// Start starts the cleanup service with scheduled sweeps
func (s *FailureCleanupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		logger.Debug("Failure retention sweep disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(FailureCleanupSchedule, s.cleanup)
	if err != nil {
		logger.Error("Failed to schedule failure cleanup", zap.Error(err))
		return err
	}

	s.entryID = entryID
	s.cron.Start()

	logger.Info("Failure cleanup service started",
		zap.String("schedule", FailureCleanupSchedule),
		zap.Int("retention_days", s.retentionDays),
	)

	// Run initial sweep immediately (non-blocking)
	go s.cleanup()

	return nil
}

// Stop stops the cleanup service gracefully
func (s *FailureCleanupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		logger.Info("Stopping failure cleanup service")
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Info("Failure cleanup service stopped")
	}
}

// cleanup performs the actual purge of old resolved failures
func (s *FailureCleanupService) cleanup() {
	logger.Info("Starting failure retention sweep",
		zap.Int("retention_days", s.retentionDays),
	)

	startTime := time.Now()
	cutoff := startTime.AddDate(0, 0, -s.retentionDays)
	deletedCount, err := s.store.PurgeResolvedBefore(cutoff)
	if err != nil {
		logger.Error("Failed to purge resolved failures",
			zap.Int("retention_days", s.retentionDays),
			zap.Error(err),
		)
		return
	}

	duration := time.Since(startTime)
	logger.Info("Failure retention sweep completed",
		zap.Int64("deleted_count", deletedCount),
		zap.Int("retention_days", s.retentionDays),
		zap.Duration("duration", duration),
	)
}
