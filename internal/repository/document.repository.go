package repository

import (
	"context"
	"errors"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrDocumentNotFound is returned when a document does not exist or
	// belongs to another user.
	ErrDocumentNotFound = errors.New("document not found")
)

type DocumentRepository struct {
	*pg.DB
}

func NewDocumentRepository(db *pg.DB) *DocumentRepository {
	return &DocumentRepository{
		db,
	}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc.UserID == 0 {
		return nil, ErrMissingUserScope
	}
	entity := toDocumentEntity(doc)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDocumentModel(entity), nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, userID, id int64) (*model.Document, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entity DocumentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	return toDocumentModel(&entity), nil
}

// Delete removes the document row and its attachments. The caller is
// responsible for removing the stored file afterwards.
func (r *DocumentRepository) Delete(ctx context.Context, userID, id int64) error {
	if userID == 0 {
		return ErrMissingUserScope
	}

	res := r.Write(ctx).WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&DocumentEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}

	return r.Write(ctx).WithContext(ctx).
		Where("document_id = ?", id).
		Delete(&TransactionDocumentEntity{}).Error
}

// Attach links a document to a transaction. Both rows must already be
// owned by the same user; callers verify ownership before linking.
func (r *DocumentRepository) Attach(ctx context.Context, userID, transactionID, documentID int64) error {
	if userID == 0 {
		return ErrMissingUserScope
	}

	link := &TransactionDocumentEntity{
		TransactionID: transactionID,
		DocumentID:    documentID,
	}
	return r.Write(ctx).WithContext(ctx).Create(link).Error
}

// Detach unlinks a document from a transaction. The document row and the
// stored file survive.
func (r *DocumentRepository) Detach(ctx context.Context, userID, transactionID, documentID int64) error {
	if userID == 0 {
		return ErrMissingUserScope
	}

	res := r.Write(ctx).WithContext(ctx).
		Where("transaction_id = ? AND document_id = ?", transactionID, documentID).
		Delete(&TransactionDocumentEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) ListByTransaction(ctx context.Context, userID, transactionID int64) ([]*model.Document, error) {
	if userID == 0 {
		return nil, ErrMissingUserScope
	}

	var entities []*DocumentEntity
	err := r.Read(ctx).WithContext(ctx).
		Joins("JOIN transaction_documents AS td ON td.document_id = documents.id").
		Where("td.transaction_id = ? AND documents.user_id = ?", transactionID, userID).
		Order("documents.id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	return toDocumentModels(entities), nil
}
