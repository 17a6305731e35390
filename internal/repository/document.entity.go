package repository

import (
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
)

type DocumentEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UserID     int64     `db:"user_id"     gorm:"column:user_id;not null;index"`
	Filename   string    `db:"filename"    gorm:"column:filename;not null"`
	FilePath   string    `db:"file_path"   gorm:"column:file_path;not null;uniqueIndex"`
	FileSize   int64     `db:"file_size"   gorm:"column:file_size;not null"`
	UploadedAt time.Time `db:"uploaded_at" gorm:"column:uploaded_at;autoCreateTime"`
}

func (DocumentEntity) TableName() string {
	return "documents"
}

// TransactionDocumentEntity is the attachment join row.
type TransactionDocumentEntity struct {
	TransactionID int64 `db:"transaction_id" gorm:"column:transaction_id;primaryKey"`
	DocumentID    int64 `db:"document_id"    gorm:"column:document_id;primaryKey"`
}

func (TransactionDocumentEntity) TableName() string {
	return "transaction_documents"
}

func toDocumentEntity(m *model.Document) *DocumentEntity {
	if m == nil {
		return nil
	}
	return &DocumentEntity{
		ID:         m.ID,
		UserID:     m.UserID,
		Filename:   m.Filename,
		FilePath:   m.FilePath,
		FileSize:   m.FileSize,
		UploadedAt: m.UploadedAt,
	}
}

func toDocumentModel(e *DocumentEntity) *model.Document {
	if e == nil {
		return nil
	}
	return &model.Document{
		ID:         e.ID,
		UserID:     e.UserID,
		Filename:   e.Filename,
		FilePath:   e.FilePath,
		FileSize:   e.FileSize,
		UploadedAt: e.UploadedAt,
	}
}

func toDocumentModels(entities []*DocumentEntity) []*model.Document {
	if entities == nil {
		return nil
	}
	models := make([]*model.Document, len(entities))
	for i, e := range entities {
		models[i] = toDocumentModel(e)
	}
	return models
}
