package repository

import (
	"context"
	"testing"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(userID int64, date time.Time, amount, currency, description string) *model.Transaction {
	return &model.Transaction{
		UserID:      userID,
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Currency:    currency,
		Description: description,
	}
}

func TestTransactionRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("create transaction successfully", func(t *testing.T) {
		txn := newTestTransaction(1, date, "-125.50", "USD", "Office Rent")
		txn.PayeeName = "Landlord LLC"

		created, err := repo.Create(ctx, txn)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, int64(1), created.UserID)
		assert.True(t, created.Amount.Equal(decimal.RequireFromString("-125.50")))
		assert.Equal(t, "Landlord LLC", created.PayeeName)
		assert.NotZero(t, created.CreatedAt)
	})

	t.Run("zero user id fails closed", func(t *testing.T) {
		txn := newTestTransaction(0, date, "10.00", "USD", "no owner")

		_, err := repo.Create(ctx, txn)
		assert.ErrorIs(t, err, ErrMissingUserScope)
	})
}

func TestTransactionRepository_GetByID_Scoping(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, newTestTransaction(1, date, "50.00", "USD", "Consulting"))
	require.NoError(t, err)

	t.Run("owner can read", func(t *testing.T) {
		got, err := repo.GetByID(ctx, 1, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("other user gets not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 2, created.ID)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("zero user id fails closed", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 0, created.ID)
		assert.ErrorIs(t, err, ErrMissingUserScope)
	})
}

func TestTransactionRepository_FindCandidates(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	otherDate := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	_, err := repo.Create(ctx, newTestTransaction(1, date, "-125.50", "USD", "Office Rent"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestTransaction(1, date, "-125.50", "EUR", "Office Rent"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestTransaction(1, otherDate, "-125.50", "USD", "Office Rent"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestTransaction(2, date, "-125.50", "USD", "Office Rent"))
	require.NoError(t, err)

	t.Run("bounded by user, date and currency", func(t *testing.T) {
		candidates, err := repo.FindCandidates(ctx, 1, date, "USD")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, int64(1), candidates[0].UserID)
		assert.Equal(t, "USD", candidates[0].Currency)
	})

	t.Run("another user's rows never appear", func(t *testing.T) {
		candidates, err := repo.FindCandidates(ctx, 2, date, "USD")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, int64(2), candidates[0].UserID)
	})

	t.Run("zero user id fails closed", func(t *testing.T) {
		_, err := repo.FindCandidates(ctx, 0, date, "USD")
		assert.ErrorIs(t, err, ErrMissingUserScope)
	})
}

func TestTransactionRepository_List(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewTransactionRepository(testDB.DB)
	codeRepo := NewCategoryCodeRepository(testDB.DB)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	coded, err := repo.Create(ctx, newTestTransaction(1, date, "100.00", "USD", "Invoice payment"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestTransaction(1, date.AddDate(0, 0, 1), "-40.00", "USD", "Team lunch"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestTransaction(2, date, "999.00", "USD", "Invoice payment"))
	require.NoError(t, err)

	_, err = codeRepo.Upsert(ctx, &model.CategoryCode{
		UserID:        1,
		TransactionID: coded.ID,
		Class:         model.CategoryClassRevenue,
	})
	require.NoError(t, err)

	t.Run("lists only the user's rows", func(t *testing.T) {
		txns, total, err := repo.List(ctx, 1, model.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, txns, 2)
	})

	t.Run("reconciled filter follows the code join", func(t *testing.T) {
		status := model.ReconcileStatusReconciled
		txns, total, err := repo.List(ctx, 1, model.TransactionFilter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, txns, 1)
		assert.Equal(t, coded.ID, txns[0].ID)
		assert.True(t, txns[0].Reconciled())
	})

	t.Run("unreconciled filter", func(t *testing.T) {
		status := model.ReconcileStatusUnreconciled
		txns, _, err := repo.List(ctx, 1, model.TransactionFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.False(t, txns[0].Reconciled())
	})

	t.Run("search matches description case-insensitively", func(t *testing.T) {
		search := "invoice"
		txns, _, err := repo.List(ctx, 1, model.TransactionFilter{Search: &search})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, "Invoice payment", txns[0].Description)
	})

	t.Run("uncoding restores unreconciled state", func(t *testing.T) {
		err := codeRepo.DeleteByTransaction(ctx, 1, coded.ID)
		require.NoError(t, err)

		status := model.ReconcileStatusReconciled
		_, total, err := repo.List(ctx, 1, model.TransactionFilter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestTransactionRepository_SoftDelete(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, newTestTransaction(1, date, "10.00", "USD", "Stationery"))
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, 1, created.ID))

	_, err = repo.GetByID(ctx, 1, created.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	candidates, err := repo.FindCandidates(ctx, 1, date, "USD")
	require.NoError(t, err)
	assert.Empty(t, candidates)

	assert.ErrorIs(t, repo.SoftDelete(ctx, 1, created.ID), ErrTransactionNotFound)
}

func TestTransactionRepository_BackfillProviderFields(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	txn := newTestTransaction(1, date, "-125.50", "USD", "Office Rent")
	txn.PayeeName = "Landlord LLC"
	created, err := repo.Create(ctx, txn)
	require.NoError(t, err)

	err = repo.BackfillProviderFields(ctx, 1, created.ID, "Someone Else", "ACME Property", "REF-42")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, 1, created.ID)
	require.NoError(t, err)
	// existing payee survives, empty fields are filled
	assert.Equal(t, "Landlord LLC", got.PayeeName)
	assert.Equal(t, "ACME Property", got.Merchant)
	assert.Equal(t, "REF-42", got.PaymentReference)
}
