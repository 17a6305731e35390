package repository

import (
	"encoding/json"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/shopspring/decimal"
)

type ImportRunEntity struct {
	ID               string     `db:"id"                gorm:"primaryKey;column:id"`
	UserID           int64      `db:"user_id"           gorm:"column:user_id;not null;index"`
	Source           string     `db:"source"            gorm:"column:source;not null"`
	Status           string     `db:"status"            gorm:"column:status;not null"`
	Imported         int        `db:"imported"          gorm:"column:imported;not null;default:0"`
	SkippedDuplicate int        `db:"skipped_duplicate" gorm:"column:skipped_duplicate;not null;default:0"`
	PendingReview    int        `db:"pending_review"    gorm:"column:pending_review;not null;default:0"`
	Failed           int        `db:"failed"            gorm:"column:failed;not null;default:0"`
	RowErrors        string     `db:"row_errors"        gorm:"column:row_errors"` // JSON
	Error            string     `db:"error"             gorm:"column:error"`
	CreatedAt        time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	CompletedAt      *time.Time `db:"completed_at"      gorm:"column:completed_at"`
}

func (ImportRunEntity) TableName() string {
	return "import_runs"
}

func toImportRunEntity(m *model.ImportRun) *ImportRunEntity {
	if m == nil {
		return nil
	}
	rowErrors := ""
	if len(m.RowErrors) > 0 {
		if b, err := json.Marshal(m.RowErrors); err == nil {
			rowErrors = string(b)
		}
	}
	return &ImportRunEntity{
		ID:               m.ID,
		UserID:           m.UserID,
		Source:           string(m.Source),
		Status:           string(m.Status),
		Imported:         m.Imported,
		SkippedDuplicate: m.SkippedDuplicate,
		PendingReview:    m.PendingReview,
		Failed:           m.Failed,
		RowErrors:        rowErrors,
		Error:            m.Error,
		CreatedAt:        m.CreatedAt,
		CompletedAt:      m.CompletedAt,
	}
}

func toImportRunModel(e *ImportRunEntity) *model.ImportRun {
	if e == nil {
		return nil
	}
	var rowErrors []model.RowError
	if e.RowErrors != "" {
		_ = json.Unmarshal([]byte(e.RowErrors), &rowErrors)
	}
	return &model.ImportRun{
		ID:               e.ID,
		UserID:           e.UserID,
		Source:           model.ImportSource(e.Source),
		Status:           model.ImportRunStatus(e.Status),
		Imported:         e.Imported,
		SkippedDuplicate: e.SkippedDuplicate,
		PendingReview:    e.PendingReview,
		Failed:           e.Failed,
		RowErrors:        rowErrors,
		Error:            e.Error,
		CreatedAt:        e.CreatedAt,
		CompletedAt:      e.CompletedAt,
	}
}

type ImportReviewEntity struct {
	ID               int64           `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	UserID           int64           `db:"user_id"           gorm:"column:user_id;not null;index"`
	ImportRunID      string          `db:"import_run_id"     gorm:"column:import_run_id;not null;index"`
	MatchedID        int64           `db:"matched_id"        gorm:"column:matched_id;not null"`
	Score            float64         `db:"score"             gorm:"column:score;not null"`
	Status           string          `db:"status"            gorm:"column:status;not null;index"`
	Date             time.Time       `db:"date"              gorm:"column:date;type:date;not null"`
	Amount           decimal.Decimal `db:"amount"            gorm:"column:amount;type:numeric(15,2);not null"`
	Currency         string          `db:"currency"          gorm:"column:currency;type:char(3);not null"`
	Description      string          `db:"description"       gorm:"column:description;not null"`
	PayeeName        string          `db:"payee_name"        gorm:"column:payee_name"`
	Merchant         string          `db:"merchant"          gorm:"column:merchant"`
	PaymentReference string          `db:"payment_reference" gorm:"column:payment_reference"`
	CreatedAt        time.Time       `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	DecidedAt        *time.Time      `db:"decided_at"        gorm:"column:decided_at"`
}

func (ImportReviewEntity) TableName() string {
	return "import_reviews"
}

func toImportReviewEntity(m *model.ImportReview) *ImportReviewEntity {
	if m == nil {
		return nil
	}
	return &ImportReviewEntity{
		ID:               m.ID,
		UserID:           m.UserID,
		ImportRunID:      m.ImportRunID,
		MatchedID:        m.MatchedID,
		Score:            m.Score,
		Status:           string(m.Status),
		Date:             m.Date,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Description:      m.Description,
		PayeeName:        m.PayeeName,
		Merchant:         m.Merchant,
		PaymentReference: m.PaymentReference,
		CreatedAt:        m.CreatedAt,
		DecidedAt:        m.DecidedAt,
	}
}

func toImportReviewModel(e *ImportReviewEntity) *model.ImportReview {
	if e == nil {
		return nil
	}
	return &model.ImportReview{
		ID:               e.ID,
		UserID:           e.UserID,
		ImportRunID:      e.ImportRunID,
		MatchedID:        e.MatchedID,
		Score:            e.Score,
		Status:           model.ImportReviewStatus(e.Status),
		Date:             e.Date,
		Amount:           e.Amount,
		Currency:         e.Currency,
		Description:      e.Description,
		PayeeName:        e.PayeeName,
		Merchant:         e.Merchant,
		PaymentReference: e.PaymentReference,
		CreatedAt:        e.CreatedAt,
		DecidedAt:        e.DecidedAt,
	}
}

func toImportReviewModels(entities []*ImportReviewEntity) []*model.ImportReview {
	if entities == nil {
		return nil
	}
	models := make([]*model.ImportReview, len(entities))
	for i, e := range entities {
		models[i] = toImportReviewModel(e)
	}
	return models
}
