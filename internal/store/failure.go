package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/errors"
)

// FailureFilter narrows failure listings. Zero values mean "any".
type FailureFilter struct {
	Stage    model.FailureStage
	Resolved *bool
}

// FailureStore defines operations for FailureLog.
type FailureStore interface {
	// Create inserts a failure log; the store assigns its ID.
	Create(log *model.FailureLog) error
	GetByID(id uint) (*model.FailureLog, error)

	// List returns the [offset, offset+limit) window of the default
	// ordering together with the true total count.
	List(filter FailureFilter, offset, limit int) ([]model.FailureLog, int64, error)

	// MarkResolved flags a failure as handled by an operator.
	MarkResolved(id uint, notes string) error

	// IncrementRetryCount bumps the retry counter after an operator retry.
	IncrementRetryCount(id uint) error

	// PurgeResolvedBefore hard-deletes resolved failures created before
	// cutoff and returns the number of rows removed.
	PurgeResolvedBefore(cutoff time.Time) (int64, error)
}

// failureStore implements FailureStore using GORM.
type failureStore struct {
	db *gorm.DB
}

func newFailureStore(db *gorm.DB) FailureStore {
	return &failureStore{db: db}
}

func (s *failureStore) Create(log *model.FailureLog) error {
	if err := s.db.Create(log).Error; err != nil {
		return errors.Wrap(errors.KindPersistence, "failed to insert failure log", err)
	}
	return nil
}

func (s *failureStore) GetByID(id uint) (*model.FailureLog, error) {
	var log model.FailureLog
	err := s.db.First(&log, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.KindNotFound, "failure %d not found", id)
		}
		return nil, errors.Wrap(errors.KindPersistence, "failed to load failure log", err)
	}
	return &log, nil
}

func (s *failureStore) List(filter FailureFilter, offset, limit int) ([]model.FailureLog, int64, error) {
	if offset < 0 {
		offset = 0
	}
	limit = ClampLimit(limit)

	query := s.db.Model(&model.FailureLog{})
	if filter.Stage != "" {
		query = query.Where("failure_stage = ?", filter.Stage)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindPersistence, "failed to count failure logs", err)
	}

	var logs []model.FailureLog
	err := query.Order(defaultOrder).Limit(limit).Offset(offset).Find(&logs).Error
	if err != nil {
		return nil, 0, errors.Wrap(errors.KindPersistence, "failed to list failure logs", err)
	}
	return logs, total, nil
}

func (s *failureStore) MarkResolved(id uint, notes string) error {
	result := s.db.Model(&model.FailureLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"resolved":         true,
		"resolution_notes": notes,
	})
	if result.Error != nil {
		return errors.Wrap(errors.KindPersistence, "failed to mark failure resolved", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Newf(errors.KindNotFound, "failure %d not found", id)
	}
	return nil
}

func (s *failureStore) IncrementRetryCount(id uint) error {
	result := s.db.Model(&model.FailureLog{}).Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1"))
	if result.Error != nil {
		return errors.Wrap(errors.KindPersistence, "failed to increment retry count", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Newf(errors.KindNotFound, "failure %d not found", id)
	}
	return nil
}

func (s *failureStore) PurgeResolvedBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("resolved = ? AND created_at < ?", true, cutoff).Delete(&model.FailureLog{})
	if result.Error != nil {
		return 0, errors.Wrap(errors.KindPersistence, "failed to purge resolved failures", result.Error)
	}
	return result.RowsAffected, nil
}
