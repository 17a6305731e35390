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
	// ErrCategoryCodeNotFound is returned when a transaction carries no code.
	ErrCategoryCodeNotFound = errors.New("category code not found")
)

type CategoryCodeRepository struct {
	*pg.DB
}

func NewCategoryCodeRepository(db *pg.DB) *CategoryCodeRepository {
	return &CategoryCodeRepository{
		db,
	}
}

// Upsert creates the code row for a transaction or replaces its class and
// notes. One code per transaction, enforced by the unique index.
func (r *CategoryCodeRepository) Upsert(ctx context.Context, code *model.CategoryCode) (*model.CategoryCode, error) {
	if code.UserID == 0 {
		return nil, ErrMissingUserScope
	}

	var existing CategoryCodeEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("user_id = ? AND transaction_id = ?", code.UserID, code.TransactionID).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Class = string(code.Class)
		existing.Notes = code.Notes
		existing.CodedAt = time.Now()
		if err := r.Write(ctx).WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return toCategoryCodeModel(&existing), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		entity := toCategoryCodeEntity(code)
		if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
			return nil, err
		}
		return toCategoryCodeModel(entity), nil
	default:
		return nil, err
	}
}

func (r *CategoryCodeRepository) GetByTransaction(ctx context.Context, userID, transactionID int64) (*model.CategoryCode, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entity CategoryCodeEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND transaction_id = ?", userID, transactionID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryCodeNotFound
		}
		return nil, err
	}
	return toCategoryCodeModel(&entity), nil
}

// DeleteByTransaction removes a transaction's code. Reconciliation state
// follows from the absence of the row.
func (r *CategoryCodeRepository) DeleteByTransaction(ctx context.Context, userID, transactionID int64) error {
	if userID == 0 {
		return ErrMissingUserScope
	}

	res := r.Write(ctx).WithContext(ctx).
		Where("user_id = ? AND transaction_id = ?", userID, transactionID).
		Delete(&CategoryCodeEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCategoryCodeNotFound
	}
	return nil
}
