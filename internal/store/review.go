package store

import (
	"gorm.io/gorm"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/errors"
)

// Page size bounds for list queries. Callers may request any size;
// the store clamps it.
const (
	MinListLimit = 1
	MaxListLimit = 100
)

// ClampLimit coerces a requested page size into [MinListLimit, MaxListLimit].
func ClampLimit(limit int) int {
	if limit < MinListLimit {
		return MinListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// defaultOrder is the ordering every review listing uses: newest first,
// ties broken by descending id.
const defaultOrder = "created_at DESC, id DESC"

// ReviewStore defines operations for ReviewRecord.
type ReviewStore interface {
	// Create inserts a record; the store assigns its ID.
	Create(record *model.ReviewRecord) error
	GetByID(id uint) (*model.ReviewRecord, error)

	// List returns the [offset, offset+limit) window of the default
	// ordering together with the true total count.
	List(offset, limit int) ([]model.ReviewRecord, int64, error)
	Latest(limit int) ([]model.ReviewRecord, error)
	ListByProject(projectKey, repoSlug string, limit int) ([]model.ReviewRecord, error)
	ListByAuthor(email string, limit int) ([]model.ReviewRecord, error)
	ListByCommit(commitID string) ([]model.ReviewRecord, error)
	ListByMergeRequest(mrID int64) ([]model.ReviewRecord, error)

	// SetEmailSent records the notification outcome.
	SetEmailSent(id uint, sent bool) error
}

// reviewStore implements ReviewStore using GORM.
type reviewStore struct {
	db *gorm.DB
}

func newReviewStore(db *gorm.DB) ReviewStore {
	return &reviewStore{db: db}
}

func (s *reviewStore) Create(record *model.ReviewRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		return errors.Wrap(errors.KindPersistence, "failed to insert review record", err)
	}
	return nil
}

func (s *reviewStore) GetByID(id uint) (*model.ReviewRecord, error) {
	var record model.ReviewRecord
	err := s.db.First(&record, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.KindNotFound, "review %d not found", id)
		}
		return nil, errors.Wrap(errors.KindPersistence, "failed to load review record", err)
	}
	return &record, nil
}

func (s *reviewStore) List(offset, limit int) ([]model.ReviewRecord, int64, error) {
	if offset < 0 {
		offset = 0
	}
	limit = ClampLimit(limit)

	var records []model.ReviewRecord
	var total int64

	query := s.db.Model(&model.ReviewRecord{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindPersistence, "failed to count review records", err)
	}

	err := query.Order(defaultOrder).Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, errors.Wrap(errors.KindPersistence, "failed to list review records", err)
	}
	return records, total, nil
}

func (s *reviewStore) Latest(limit int) ([]model.ReviewRecord, error) {
	var records []model.ReviewRecord
	err := s.db.Order(defaultOrder).Limit(ClampLimit(limit)).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, "failed to list review records", err)
	}
	return records, nil
}

func (s *reviewStore) ListByProject(projectKey, repoSlug string, limit int) ([]model.ReviewRecord, error) {
	query := s.db.Where("project_key = ?", projectKey)
	if repoSlug != "" {
		query = query.Where("repo_slug = ?", repoSlug)
	}

	var records []model.ReviewRecord
	err := query.Order(defaultOrder).Limit(ClampLimit(limit)).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, "failed to list review records by project", err)
	}
	return records, nil
}

func (s *reviewStore) ListByAuthor(email string, limit int) ([]model.ReviewRecord, error) {
	var records []model.ReviewRecord
	err := s.db.Where("author_email = ?", email).
		Order(defaultOrder).Limit(ClampLimit(limit)).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, "failed to list review records by author", err)
	}
	return records, nil
}

func (s *reviewStore) ListByCommit(commitID string) ([]model.ReviewRecord, error) {
	var records []model.ReviewRecord
	err := s.db.Where("commit_id = ?", commitID).Order(defaultOrder).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, "failed to list review records by commit", err)
	}
	return records, nil
}

func (s *reviewStore) ListByMergeRequest(mrID int64) ([]model.ReviewRecord, error) {
	var records []model.ReviewRecord
	err := s.db.Where("merge_req_id = ?", mrID).Order(defaultOrder).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, "failed to list review records by merge request", err)
	}
	return records, nil
}

func (s *reviewStore) SetEmailSent(id uint, sent bool) error {
	err := s.db.Model(&model.ReviewRecord{}).Where("id = ?", id).Update("email_sent", sent).Error
	if err != nil {
		return errors.Wrap(errors.KindPersistence, "failed to update email_sent", err)
	}
	return nil
}
