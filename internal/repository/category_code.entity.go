package repository

import (
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
)

type CategoryCodeEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64     `db:"user_id"        gorm:"column:user_id;not null;index"`
	TransactionID int64     `db:"transaction_id" gorm:"column:transaction_id;not null;uniqueIndex"`
	Class         string    `db:"class"          gorm:"column:class;not null"`
	Notes         string    `db:"notes"          gorm:"column:notes"`
	CodedAt       time.Time `db:"coded_at"       gorm:"column:coded_at;autoCreateTime"`
}

func (CategoryCodeEntity) TableName() string {
	return "category_codes"
}

func toCategoryCodeEntity(m *model.CategoryCode) *CategoryCodeEntity {
	if m == nil {
		return nil
	}
	return &CategoryCodeEntity{
		ID:            m.ID,
		UserID:        m.UserID,
		TransactionID: m.TransactionID,
		Class:         string(m.Class),
		Notes:         m.Notes,
		CodedAt:       m.CodedAt,
	}
}

func toCategoryCodeModel(e *CategoryCodeEntity) *model.CategoryCode {
	if e == nil {
		return nil
	}
	return &model.CategoryCode{
		ID:            e.ID,
		UserID:        e.UserID,
		TransactionID: e.TransactionID,
		Class:         model.CategoryClass(e.Class),
		Notes:         e.Notes,
		CodedAt:       e.CodedAt,
	}
}
