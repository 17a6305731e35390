package model

import "time"

// CategoryClass is the coding class of a transaction.
type CategoryClass string

const (
	CategoryClassRevenue CategoryClass = "revenue"
	CategoryClassExpense CategoryClass = "expense"
)

func (c CategoryClass) Valid() bool {
	return c == CategoryClassRevenue || c == CategoryClassExpense
}

type CategoryCode struct {
	ID            int64         `json:"id"             db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64         `json:"user_id"        db:"user_id"        gorm:"column:user_id;not null;index"`
	TransactionID int64         `json:"transaction_id" db:"transaction_id" gorm:"column:transaction_id;not null;uniqueIndex"`
	Class         CategoryClass `json:"class"          db:"class"          gorm:"column:class;not null"`
	Notes         string        `json:"notes"          db:"notes"          gorm:"column:notes"`
	CodedAt       time.Time     `json:"coded_at"       db:"coded_at"       gorm:"column:coded_at;autoCreateTime"`
}

func (CategoryCode) TableName() string { return "category_codes" }
