package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrTransactionNotFound is returned when a transaction does not exist
	// or belongs to another user.
	ErrTransactionNotFound = errors.New("transaction not found")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn.UserID == 0 {
		return nil, ErrMissingUserScope
	}
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Omit("Code", "Documents").Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// CreateBatch inserts a staged group of transactions. Callers wrap it in
// WithinTransaction so a group commits or rolls back as one.
func (r *TransactionRepository) CreateBatch(ctx context.Context, txns []*model.Transaction) ([]*model.Transaction, error) {
	if len(txns) == 0 {
		return nil, nil
	}
	entities := make([]*TransactionEntity, len(txns))
	for i, txn := range txns {
		if txn.UserID == 0 {
			return nil, ErrMissingUserScope
		}
		entities[i] = toTransactionEntity(txn)
	}

	if err := r.Write(ctx).WithContext(ctx).Omit("Code", "Documents").Create(entities).Error; err != nil {
		return nil, err
	}

	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Code").
		Preload("Documents").
		Where("user_id = ? AND id = ? AND deleted_at IS NULL", userID, id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn.UserID == 0 {
		return nil, ErrMissingUserScope
	}

	entity := toTransactionEntity(txn)
	res := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("user_id = ? AND id = ? AND deleted_at IS NULL", txn.UserID, txn.ID).
		Updates(map[string]interface{}{
			"date":              entity.Date,
			"amount":            entity.Amount,
			"currency":          entity.Currency,
			"description":       entity.Description,
			"payee_name":        entity.PayeeName,
			"merchant":          entity.Merchant,
			"payment_reference": entity.PaymentReference,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTransactionNotFound
	}

	return r.GetByID(ctx, txn.UserID, txn.ID)
}

func (r *TransactionRepository) SoftDelete(ctx context.Context, userID, id int64) error {
	if userID == 0 {
		return ErrMissingUserScope
	}

	now := time.Now()
	res := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("user_id = ? AND id = ? AND deleted_at IS NULL", userID, id).
		Update("deleted_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) List(ctx context.Context, userID int64, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	if userID == 0 {
		return nil, 0, ErrMissingUserScope
	}

	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("transactions.user_id = ?", userID).
		Where("transactions.deleted_at IS NULL")

	needsCodeJoin := f.Status != nil || f.Class != nil
	if needsCodeJoin {
		q = q.Joins("LEFT JOIN category_codes AS cc ON cc.transaction_id = transactions.id")
	}
	if f.Status != nil {
		switch *f.Status {
		case model.ReconcileStatusReconciled:
			q = q.Where("cc.id IS NOT NULL")
		case model.ReconcileStatusUnreconciled:
			q = q.Where("cc.id IS NULL")
		}
	}
	if f.Class != nil {
		q = q.Where("cc.class = ?", *f.Class)
	}
	if f.Currency != nil && *f.Currency != "" {
		q = q.Where("transactions.currency = ?", *f.Currency)
	}
	if f.From != nil {
		q = q.Where("transactions.date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("transactions.date <= ?", *f.To)
	}
	if f.Search != nil && *f.Search != "" {
		pattern := "%" + strings.ToLower(*f.Search) + "%"
		q = q.Where(
			"LOWER(transactions.description) LIKE ? OR LOWER(transactions.payee_name) LIKE ? OR LOWER(transactions.merchant) LIKE ? OR LOWER(transactions.payment_reference) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "transactions.date"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}
	order += ", transactions.id ASC"

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Preload("Code").Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// FindCandidates returns the duplicate-candidate set for one user, date
// and currency, earliest created first. The bound keeps the duplicate
// check off a full table scan.
func (r *TransactionRepository) FindCandidates(ctx context.Context, userID int64, date time.Time, currency string) ([]*model.Transaction, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND date = ? AND currency = ? AND deleted_at IS NULL", userID, date, currency).
		Order("created_at ASC, id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	return toTransactionModels(entities), nil
}

// ListCoded returns every category-coded transaction for the user in the
// date range, code preloaded, for report aggregation and CSV export.
func (r *TransactionRepository) ListCoded(ctx context.Context, userID int64, from, to time.Time) ([]*model.Transaction, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Joins("JOIN category_codes AS cc ON cc.transaction_id = transactions.id").
		Where("transactions.user_id = ? AND transactions.deleted_at IS NULL", userID).
		Where("transactions.date >= ? AND transactions.date <= ?", from, to).
		Preload("Code").
		Order("transactions.date ASC, transactions.id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	return toTransactionModels(entities), nil
}

// BackfillProviderFields fills payee, merchant and reference on a matched
// transaction, only where the stored value is still empty. Provider sync
// uses it to enrich rows it would otherwise skip as duplicates.
func (r *TransactionRepository) BackfillProviderFields(ctx context.Context, userID, id int64, payee, merchant, reference string) error {
	if userID == 0 {
		return ErrMissingUserScope
	}

	updates := map[string]interface{}{}
	if payee != "" {
		updates["payee_name"] = gorm.Expr("CASE WHEN payee_name = '' THEN ? ELSE payee_name END", payee)
	}
	if merchant != "" {
		updates["merchant"] = gorm.Expr("CASE WHEN merchant = '' THEN ? ELSE merchant END", merchant)
	}
	if reference != "" {
		updates["payment_reference"] = gorm.Expr("CASE WHEN payment_reference = '' THEN ? ELSE payment_reference END", reference)
	}
	if len(updates) == 0 {
		return nil
	}

	return r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("user_id = ? AND id = ? AND deleted_at IS NULL", userID, id).
		Updates(updates).Error
}
