package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ReconcileStatus filters List queries by coding state. It is always
// computed from the category_codes join, never read from a column.
type ReconcileStatus string

const (
	ReconcileStatusReconciled   ReconcileStatus = "reconciled"
	ReconcileStatusUnreconciled ReconcileStatus = "unreconciled"
)

type Transaction struct {
	ID               int64           `json:"id"                db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	UserID           int64           `json:"user_id"           db:"user_id"           gorm:"column:user_id;not null;index"`
	User             *User           `json:"-"                                          gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Date             time.Time       `json:"date"              db:"date"              gorm:"column:date;type:date;not null;index"`
	Amount           decimal.Decimal `json:"amount"            db:"amount"            gorm:"column:amount;type:numeric(15,2);not null"`
	Currency         string          `json:"currency"          db:"currency"          gorm:"column:currency;type:char(3);not null"`
	Description      string          `json:"description"       db:"description"       gorm:"column:description;not null"`
	PayeeName        string          `json:"payee_name"        db:"payee_name"        gorm:"column:payee_name"`
	Merchant         string          `json:"merchant"          db:"merchant"          gorm:"column:merchant"`
	PaymentReference string          `json:"payment_reference" db:"payment_reference" gorm:"column:payment_reference"`
	CreatedAt        time.Time       `json:"created_at"        db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	DeletedAt        *time.Time      `json:"-"                 db:"deleted_at"        gorm:"column:deleted_at;index"`

	Code      *CategoryCode `json:"code,omitempty"      gorm:"foreignKey:TransactionID;references:ID"`
	Documents []*Document   `json:"documents,omitempty" gorm:"many2many:transaction_documents"`
}

func (Transaction) TableName() string { return "transactions" }

// Reconciled reports whether the transaction carries a category code.
func (t *Transaction) Reconciled() bool { return t.Code != nil }

// TransactionCreateRequest is the input for manual entry and staged imports.
type TransactionCreateRequest struct {
	UserID           int64
	Date             time.Time
	Amount           decimal.Decimal
	Currency         string
	Description      string
	PayeeName        string
	Merchant         string
	PaymentReference string
}

func (p TransactionCreateRequest) Validate() error {
	if p.UserID == 0 {
		return errors.New("user_id is required")
	}
	if p.Date.IsZero() {
		return errors.New("date is required")
	}
	if p.Currency == "" {
		return errors.New("currency is required")
	}
	if p.Description == "" {
		return errors.New("description is required")
	}
	return nil
}

// TransactionFilter controls List queries. Every query built from it is
// additionally scoped to the owning user by the repository.
type TransactionFilter struct {
	Status   *ReconcileStatus
	Class    *CategoryClass
	Currency *string
	From     *time.Time
	To       *time.Time
	Search   *string // matches description, payee, merchant or reference
	Limit    int     // default 50
	Offset   int
	Desc     bool // order by date
}
