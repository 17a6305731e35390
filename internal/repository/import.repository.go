package repository

import (
	"context"
	"errors"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrImportRunNotFound is returned when an import run does not exist
	// or belongs to another user.
	ErrImportRunNotFound = errors.New("import run not found")
	// ErrImportReviewNotFound is returned when a review row does not exist,
	// belongs to another user, or was already decided.
	ErrImportReviewNotFound = errors.New("import review not found")
)

type ImportRepository struct {
	*pg.DB
}

func NewImportRepository(db *pg.DB) *ImportRepository {
	return &ImportRepository{
		db,
	}
}

func (r *ImportRepository) CreateRun(ctx context.Context, run *model.ImportRun) (*model.ImportRun, error) {
	if run.UserID == 0 {
		return nil, ErrMissingUserScope
	}
	entity := toImportRunEntity(run)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toImportRunModel(entity), nil
}

func (r *ImportRepository) UpdateRun(ctx context.Context, run *model.ImportRun) (*model.ImportRun, error) {
	if run.UserID == 0 {
		return nil, ErrMissingUserScope
	}
	entity := toImportRunEntity(run)

	res := r.Write(ctx).WithContext(ctx).
		Model(&ImportRunEntity{}).
		Where("user_id = ? AND id = ?", run.UserID, run.ID).
		Updates(map[string]interface{}{
			"status":            entity.Status,
			"imported":          entity.Imported,
			"skipped_duplicate": entity.SkippedDuplicate,
			"pending_review":    entity.PendingReview,
			"failed":            entity.Failed,
			"row_errors":        entity.RowErrors,
			"error":             entity.Error,
			"completed_at":      entity.CompletedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrImportRunNotFound
	}
	return run, nil
}

func (r *ImportRepository) GetRun(ctx context.Context, userID int64, id string) (*model.ImportRun, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entity ImportRunEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImportRunNotFound
		}
		return nil, err
	}
	return toImportRunModel(&entity), nil
}

func (r *ImportRepository) CreateReview(ctx context.Context, review *model.ImportReview) (*model.ImportReview, error) {
	if review.UserID == 0 {
		return nil, ErrMissingUserScope
	}
	entity := toImportReviewEntity(review)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toImportReviewModel(entity), nil
}

func (r *ImportRepository) ListPendingReviews(ctx context.Context, userID int64, limit, offset int) ([]*model.ImportReview, int64, error) {
	if userID == 0 {
		return nil, 0, ErrMissingUserScope
	}

	q := r.Read(ctx).WithContext(ctx).
		Model(&ImportReviewEntity{}).
		Where("user_id = ? AND status = ?", userID, string(model.ImportReviewStatusPending))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var entities []*ImportReviewEntity
	if err := q.Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toImportReviewModels(entities), total, nil
}

func (r *ImportRepository) GetReview(ctx context.Context, userID, id int64) (*model.ImportReview, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entity ImportReviewEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImportReviewNotFound
		}
		return nil, err
	}
	return toImportReviewModel(&entity), nil
}

// DecideReview flips a pending review to accepted or rejected. A review
// already decided stays decided; the conditional update makes a repeated
// decision a not-found instead of a silent overwrite.
func (r *ImportRepository) DecideReview(ctx context.Context, userID, id int64, status model.ImportReviewStatus) error {
	if userID == 0 {
		return ErrMissingUserScope
	}

	now := time.Now()
	res := r.Write(ctx).WithContext(ctx).
		Model(&ImportReviewEntity{}).
		Where("user_id = ? AND id = ? AND status = ?", userID, id, string(model.ImportReviewStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(status),
			"decided_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrImportReviewNotFound
	}
	return nil
}
