package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, userID, id int64) (*model.Document, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, userID, id int64) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) Attach(ctx context.Context, userID, transactionID, documentID int64) error {
	args := m.Called(ctx, userID, transactionID, documentID)
	return args.Error(0)
}

func (m *MockDocumentRepository) Detach(ctx context.Context, userID, transactionID, documentID int64) error {
	args := m.Called(ctx, userID, transactionID, documentID)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListByTransaction(ctx context.Context, userID, transactionID int64) ([]*model.Document, error) {
	args := m.Called(ctx, userID, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Document), args.Error(1)
}

type MockTransactionGetter struct {
	mock.Mock
}

func (m *MockTransactionGetter) GetByID(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func newDocumentService(t *testing.T) (*DocumentService, *MockDocumentRepository, *MockTransactionGetter, string) {
	t.Helper()
	docRepo := new(MockDocumentRepository)
	txnGetter := new(MockTransactionGetter)
	root := t.TempDir()
	return NewDocumentService(docRepo, txnGetter, root, 1024), docRepo, txnGetter, root
}

func TestDocumentService_Upload(t *testing.T) {
	svc, docRepo, txnGetter, root := newDocumentService(t)

	txnGetter.On("GetByID", mock.Anything, int64(1), int64(5)).
		Return(&model.Transaction{ID: 5, UserID: 1}, nil)
	docRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
		return d.UserID == 1 && d.Filename == "invoice.pdf" && d.FileSize == 9
	})).Return(&model.Document{ID: 3, UserID: 1, Filename: "invoice.pdf"}, nil).
		Run(func(args mock.Arguments) {
			doc := args.Get(1).(*model.Document)
			// the file must already be on disk when the row is created
			_, err := os.Stat(filepath.Join(root, doc.FilePath))
			assert.NoError(t, err)
		})
	docRepo.On("Attach", mock.Anything, int64(1), int64(5), int64(3)).Return(nil)

	doc, err := svc.Upload(context.Background(), 1, 5, "invoice.pdf", []byte("%PDF-1.4\n"))

	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.ID)
	docRepo.AssertExpectations(t)
}

func TestDocumentService_Upload_RejectsNonPDF(t *testing.T) {
	svc, _, txnGetter, _ := newDocumentService(t)

	_, err := svc.Upload(context.Background(), 1, 5, "invoice.exe", []byte("data"))

	assert.ErrorIs(t, err, ErrUnsupportedType)
	txnGetter.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_Upload_RejectsSpoofedExtension(t *testing.T) {
	svc, _, txnGetter, _ := newDocumentService(t)

	// the name says pdf, the bytes do not
	_, err := svc.Upload(context.Background(), 1, 5, "invoice.pdf", []byte("MZ\x90\x00"))

	assert.ErrorIs(t, err, ErrUnsupportedType)
	txnGetter.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_Upload_RejectsEmptyAndOversized(t *testing.T) {
	svc, _, _, _ := newDocumentService(t)

	_, err := svc.Upload(context.Background(), 1, 5, "invoice.pdf", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = svc.Upload(context.Background(), 1, 5, "invoice.pdf", make([]byte, 2048))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestDocumentService_Upload_SanitizesFilename(t *testing.T) {
	svc, docRepo, txnGetter, _ := newDocumentService(t)

	txnGetter.On("GetByID", mock.Anything, int64(1), int64(5)).
		Return(&model.Transaction{ID: 5, UserID: 1}, nil)
	docRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
		return d.Filename == "my_invoice__2025_.pdf"
	})).Return(&model.Document{ID: 3, UserID: 1}, nil)
	docRepo.On("Attach", mock.Anything, int64(1), int64(5), int64(3)).Return(nil)

	_, err := svc.Upload(context.Background(), 1, 5, "my invoice (2025).pdf", []byte("%PDF"))

	require.NoError(t, err)
}

func TestDocumentService_Upload_CleansUpOrphanedFileOnCreateFailure(t *testing.T) {
	svc, docRepo, txnGetter, root := newDocumentService(t)

	txnGetter.On("GetByID", mock.Anything, int64(1), int64(5)).
		Return(&model.Transaction{ID: 5, UserID: 1}, nil)
	docRepo.On("Create", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := svc.Upload(context.Background(), 1, 5, "invoice.pdf", []byte("%PDF"))

	require.Error(t, err)
	entries, globErr := filepath.Glob(filepath.Join(root, "1", "*", "*", "*"))
	require.NoError(t, globErr)
	assert.Empty(t, entries)
}

func TestDocumentService_Delete_RemovesFile(t *testing.T) {
	svc, docRepo, _, root := newDocumentService(t)

	relPath := filepath.Join("1", "2025", "03", "abc_invoice.pdf")
	absPath := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(absPath), 0o755))
	require.NoError(t, os.WriteFile(absPath, []byte("%PDF"), 0o644))

	docRepo.On("GetByID", mock.Anything, int64(1), int64(3)).
		Return(&model.Document{ID: 3, UserID: 1, FilePath: relPath}, nil)
	docRepo.On("Delete", mock.Anything, int64(1), int64(3)).Return(nil)

	require.NoError(t, svc.Delete(context.Background(), 1, 3))
	_, err := os.Stat(absPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDocumentService_FilePath_ConfinesToRoot(t *testing.T) {
	svc, docRepo, _, _ := newDocumentService(t)

	docRepo.On("GetByID", mock.Anything, int64(1), int64(3)).
		Return(&model.Document{ID: 3, UserID: 1, FilePath: "../../etc/passwd"}, nil)

	_, _, err := svc.FilePath(context.Background(), 1, 3)

	assert.ErrorIs(t, err, ErrPathOutsideRoot)
}
