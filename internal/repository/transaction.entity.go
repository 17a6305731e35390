package repository

import (
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	ID               int64           `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	UserID           int64           `db:"user_id"           gorm:"column:user_id;not null;index"`
	Date             time.Time       `db:"date"              gorm:"column:date;type:date;not null;index"`
	Amount           decimal.Decimal `db:"amount"            gorm:"column:amount;type:numeric(15,2);not null"`
	Currency         string          `db:"currency"          gorm:"column:currency;type:char(3);not null"`
	Description      string          `db:"description"       gorm:"column:description;not null"`
	PayeeName        string          `db:"payee_name"        gorm:"column:payee_name"`
	Merchant         string          `db:"merchant"          gorm:"column:merchant"`
	PaymentReference string          `db:"payment_reference" gorm:"column:payment_reference"`
	CreatedAt        time.Time       `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	DeletedAt        *time.Time      `db:"deleted_at"        gorm:"column:deleted_at;index"`

	Code      *CategoryCodeEntity `gorm:"foreignKey:TransactionID"`
	Documents []*DocumentEntity   `gorm:"many2many:transaction_documents;joinForeignKey:TransactionID;joinReferences:DocumentID"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:               m.ID,
		UserID:           m.UserID,
		Date:             m.Date,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Description:      m.Description,
		PayeeName:        m.PayeeName,
		Merchant:         m.Merchant,
		PaymentReference: m.PaymentReference,
		CreatedAt:        m.CreatedAt,
		DeletedAt:        m.DeletedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:               e.ID,
		UserID:           e.UserID,
		Date:             e.Date,
		Amount:           e.Amount,
		Currency:         e.Currency,
		Description:      e.Description,
		PayeeName:        e.PayeeName,
		Merchant:         e.Merchant,
		PaymentReference: e.PaymentReference,
		CreatedAt:        e.CreatedAt,
		DeletedAt:        e.DeletedAt,
	}
	if e.Code != nil {
		m.Code = toCategoryCodeModel(e.Code)
	}
	if e.Documents != nil {
		m.Documents = toDocumentModels(e.Documents)
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
