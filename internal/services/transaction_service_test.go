package services

import (
	"context"
	"testing"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/dedup"
	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/validate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SoftDelete(ctx context.Context, userID, id int64) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockTransactionRepository) List(ctx context.Context, userID int64, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, userID, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockCategoryCodeRepository struct {
	mock.Mock
}

func (m *MockCategoryCodeRepository) Upsert(ctx context.Context, code *model.CategoryCode) (*model.CategoryCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CategoryCode), args.Error(1)
}

func (m *MockCategoryCodeRepository) DeleteByTransaction(ctx context.Context, userID, transactionID int64) error {
	args := m.Called(ctx, userID, transactionID)
	return args.Error(0)
}

type MockDuplicateChecker struct {
	mock.Mock
}

func (m *MockDuplicateChecker) Check(ctx context.Context, userID int64, rec *validate.Record) (dedup.Match, error) {
	args := m.Called(ctx, userID, rec)
	return args.Get(0).(dedup.Match), args.Error(1)
}

func (m *MockDuplicateChecker) CheckExcluding(ctx context.Context, userID int64, rec *validate.Record, excludeID int64) (dedup.Match, error) {
	args := m.Called(ctx, userID, rec, excludeID)
	return args.Get(0).(dedup.Match), args.Error(1)
}

func newTestCreateRequest() model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		UserID:      1,
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-1200.00"),
		Currency:    "EUR",
		Description: "Office Rent March",
		PayeeName:   "Acme Properties",
	}
}

func TestTransactionService_Create_RejectsHighConfidenceDuplicate(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	checker := new(MockDuplicateChecker)
	svc := NewTransactionService(txnRepo, codeRepo, checker)

	existing := &model.Transaction{ID: 42, UserID: 1}
	checker.On("Check", mock.Anything, int64(1), mock.Anything).
		Return(dedup.Match{Confidence: dedup.ConfidenceHigh, Transaction: existing, Score: 1.0}, nil)

	created, match, err := svc.Create(context.Background(), newTestCreateRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.Nil(t, created)
	require.NotNil(t, match)
	assert.Equal(t, int64(42), match.Transaction.ID)
	txnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTransactionService_Create_MediumConfidenceCreatesWithWarning(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	checker := new(MockDuplicateChecker)
	svc := NewTransactionService(txnRepo, codeRepo, checker)

	similar := &model.Transaction{ID: 7, UserID: 1}
	checker.On("Check", mock.Anything, int64(1), mock.Anything).
		Return(dedup.Match{Confidence: dedup.ConfidenceMedium, Transaction: similar, Score: 0.61}, nil)
	txnRepo.On("Create", mock.Anything, mock.MatchedBy(func(txn *model.Transaction) bool {
		return txn.UserID == 1 && txn.Amount.Equal(decimal.RequireFromString("-1200.00"))
	})).Return(&model.Transaction{ID: 100, UserID: 1}, nil)

	created, match, err := svc.Create(context.Background(), newTestCreateRequest())

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, int64(100), created.ID)
	require.NotNil(t, match)
	assert.Equal(t, dedup.ConfidenceMedium, match.Confidence)
	assert.Equal(t, int64(7), match.Transaction.ID)
}

func TestTransactionService_Create_NoMatchReturnsNoWarning(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	checker := new(MockDuplicateChecker)
	svc := NewTransactionService(txnRepo, codeRepo, checker)

	checker.On("Check", mock.Anything, int64(1), mock.Anything).
		Return(dedup.Match{Confidence: dedup.ConfidenceNone}, nil)
	txnRepo.On("Create", mock.Anything, mock.Anything).
		Return(&model.Transaction{ID: 100, UserID: 1}, nil)

	created, match, err := svc.Create(context.Background(), newTestCreateRequest())

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Nil(t, match)
}

func TestTransactionService_Create_InvalidRequest(t *testing.T) {
	svc := NewTransactionService(new(MockTransactionRepository), new(MockCategoryCodeRepository), new(MockDuplicateChecker))

	p := newTestCreateRequest()
	p.Description = ""
	_, _, err := svc.Create(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	p = newTestCreateRequest()
	p.UserID = 0
	_, _, err = svc.Create(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTransactionService_Update_SkipsDedupWhenIdentityUnchanged(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	checker := new(MockDuplicateChecker)
	svc := NewTransactionService(txnRepo, codeRepo, checker)

	p := newTestCreateRequest()
	existing := &model.Transaction{
		ID:          5,
		UserID:      1,
		Date:        p.Date,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		PayeeName:   "Old Payee",
	}
	txnRepo.On("GetByID", mock.Anything, int64(1), int64(5)).Return(existing, nil)
	txnRepo.On("Update", mock.Anything, mock.Anything).
		Return(&model.Transaction{ID: 5, UserID: 1, PayeeName: p.PayeeName}, nil)

	// only the payee changed, so no duplicate re-check
	updated, match, err := svc.Update(context.Background(), 1, 5, p)

	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, "Acme Properties", updated.PayeeName)
	checker.AssertNotCalled(t, "CheckExcluding", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransactionService_Update_RechecksWhenAmountMoved(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	checker := new(MockDuplicateChecker)
	svc := NewTransactionService(txnRepo, codeRepo, checker)

	p := newTestCreateRequest()
	existing := &model.Transaction{
		ID:          5,
		UserID:      1,
		Date:        p.Date,
		Amount:      decimal.RequireFromString("-999.00"),
		Currency:    p.Currency,
		Description: p.Description,
	}
	txnRepo.On("GetByID", mock.Anything, int64(1), int64(5)).Return(existing, nil)
	checker.On("CheckExcluding", mock.Anything, int64(1), mock.Anything, int64(5)).
		Return(dedup.Match{Confidence: dedup.ConfidenceHigh, Transaction: &model.Transaction{ID: 9}}, nil)

	_, match, err := svc.Update(context.Background(), 1, 5, p)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
	require.NotNil(t, match)
	assert.Equal(t, int64(9), match.Transaction.ID)
	txnRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTransactionService_Code(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	svc := NewTransactionService(txnRepo, codeRepo, new(MockDuplicateChecker))

	txnRepo.On("GetByID", mock.Anything, int64(1), int64(5)).
		Return(&model.Transaction{ID: 5, UserID: 1}, nil)
	codeRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *model.CategoryCode) bool {
		return c.UserID == 1 && c.TransactionID == 5 && c.Class == model.CategoryClassExpense && c.Notes == "monthly rent"
	})).Return(&model.CategoryCode{ID: 1, TransactionID: 5, Class: model.CategoryClassExpense}, nil)

	code, err := svc.Code(context.Background(), 1, 5, model.CategoryClassExpense, "monthly rent")

	require.NoError(t, err)
	assert.Equal(t, model.CategoryClassExpense, code.Class)
}

func TestTransactionService_Code_InvalidClass(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	svc := NewTransactionService(txnRepo, codeRepo, new(MockDuplicateChecker))

	_, err := svc.Code(context.Background(), 1, 5, model.CategoryClass("asset"), "")

	assert.ErrorIs(t, err, ErrInvalidCategoryClass)
	txnRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransactionService_Uncode(t *testing.T) {
	txnRepo := new(MockTransactionRepository)
	codeRepo := new(MockCategoryCodeRepository)
	svc := NewTransactionService(txnRepo, codeRepo, new(MockDuplicateChecker))

	txnRepo.On("GetByID", mock.Anything, int64(1), int64(5)).
		Return(&model.Transaction{ID: 5, UserID: 1}, nil)
	codeRepo.On("DeleteByTransaction", mock.Anything, int64(1), int64(5)).Return(nil)

	require.NoError(t, svc.Uncode(context.Background(), 1, 5))
	codeRepo.AssertExpectations(t)
}

func TestTransactionService_List_RejectsInvertedRange(t *testing.T) {
	svc := NewTransactionService(new(MockTransactionRepository), new(MockCategoryCodeRepository), new(MockDuplicateChecker))

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := svc.List(context.Background(), 1, model.TransactionFilter{From: &from, To: &to})

	require.Error(t, err)
}
