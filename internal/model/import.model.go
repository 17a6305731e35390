package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ImportSource string

const (
	ImportSourceCSV      ImportSource = "csv"
	ImportSourceProvider ImportSource = "provider"
)

type ImportRunStatus string

const (
	ImportRunStatusQueued    ImportRunStatus = "queued"
	ImportRunStatusRunning   ImportRunStatus = "running"
	ImportRunStatusCompleted ImportRunStatus = "completed"
	ImportRunStatusFailed    ImportRunStatus = "failed"
)

// RowError pins one rejected input row to the field that failed.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ImportRun struct {
	ID               string          `json:"id"                db:"id"                gorm:"primaryKey;column:id"` // uuid
	UserID           int64           `json:"user_id"           db:"user_id"           gorm:"column:user_id;not null;index"`
	Source           ImportSource    `json:"source"            db:"source"            gorm:"column:source;not null"`
	Status           ImportRunStatus `json:"status"            db:"status"            gorm:"column:status;not null"`
	Imported         int             `json:"imported"          db:"imported"          gorm:"column:imported;not null;default:0"`
	SkippedDuplicate int             `json:"skipped_duplicate" db:"skipped_duplicate" gorm:"column:skipped_duplicate;not null;default:0"`
	PendingReview    int             `json:"pending_review"    db:"pending_review"    gorm:"column:pending_review;not null;default:0"`
	Failed           int             `json:"failed"            db:"failed"            gorm:"column:failed;not null;default:0"`
	RowErrors        []RowError      `json:"row_errors"        db:"row_errors"        gorm:"column:row_errors;serializer:json"`
	Error            string          `json:"error,omitempty"   db:"error"             gorm:"column:error"`
	CreatedAt        time.Time       `json:"created_at"        db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	CompletedAt      *time.Time      `json:"completed_at"      db:"completed_at"      gorm:"column:completed_at"`
}

func (ImportRun) TableName() string { return "import_runs" }

type ImportReviewStatus string

const (
	ImportReviewStatusPending  ImportReviewStatus = "pending"
	ImportReviewStatusAccepted ImportReviewStatus = "accepted"
	ImportReviewStatusRejected ImportReviewStatus = "rejected"
)

// ImportReview is one medium-confidence duplicate candidate parked for an
// explicit user decision. The validated candidate fields are carried on the
// row so an accept can insert without re-reading the source.
type ImportReview struct {
	ID               int64              `json:"id"                db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	UserID           int64              `json:"user_id"           db:"user_id"           gorm:"column:user_id;not null;index"`
	ImportRunID      string             `json:"import_run_id"     db:"import_run_id"     gorm:"column:import_run_id;not null;index"`
	MatchedID        int64              `json:"matched_id"        db:"matched_id"        gorm:"column:matched_id;not null"`
	Score            float64            `json:"score"             db:"score"             gorm:"column:score;not null"`
	Status           ImportReviewStatus `json:"status"            db:"status"            gorm:"column:status;not null;index"`
	Date             time.Time          `json:"date"              db:"date"              gorm:"column:date;type:date;not null"`
	Amount           decimal.Decimal    `json:"amount"            db:"amount"            gorm:"column:amount;type:numeric(15,2);not null"`
	Currency         string             `json:"currency"          db:"currency"          gorm:"column:currency;type:char(3);not null"`
	Description      string             `json:"description"       db:"description"       gorm:"column:description;not null"`
	PayeeName        string             `json:"payee_name"        db:"payee_name"        gorm:"column:payee_name"`
	Merchant         string             `json:"merchant"          db:"merchant"          gorm:"column:merchant"`
	PaymentReference string             `json:"payment_reference" db:"payment_reference" gorm:"column:payment_reference"`
	CreatedAt        time.Time          `json:"created_at"        db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	DecidedAt        *time.Time         `json:"decided_at"        db:"decided_at"        gorm:"column:decided_at"`
}

func (ImportReview) TableName() string { return "import_reviews" }

// ImportJob is the queue payload the API publishes and the worker consumes.
type ImportJob struct {
	RunID  string       `json:"run_id"`
	UserID int64        `json:"user_id"`
	Source ImportSource `json:"source"`
	Path   string       `json:"path,omitempty"`  // csv file path
	Since  string       `json:"since,omitempty"` // provider sync cursor, RFC 3339 date
}
