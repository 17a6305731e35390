package repository

import (
	"context"
	"testing"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository_AttachDetach(t *testing.T) {
	testDB := setupTestDB(t)
	docRepo := NewDocumentRepository(testDB.DB)
	txnRepo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	txn, err := txnRepo.Create(ctx, newTestTransaction(1, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "-125.50", "USD", "Office Rent"))
	require.NoError(t, err)

	doc, err := docRepo.Create(ctx, &model.Document{
		UserID:   1,
		Filename: "invoice.pdf",
		FilePath: "1/2024/03/abc123_invoice.pdf",
		FileSize: 2048,
	})
	require.NoError(t, err)
	require.NotZero(t, doc.ID)

	t.Run("attach links and list sees it", func(t *testing.T) {
		require.NoError(t, docRepo.Attach(ctx, 1, txn.ID, doc.ID))

		docs, err := docRepo.ListByTransaction(ctx, 1, txn.ID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "invoice.pdf", docs[0].Filename)
	})

	t.Run("listing under another user sees nothing", func(t *testing.T) {
		docs, err := docRepo.ListByTransaction(ctx, 2, txn.ID)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("detach keeps the document row", func(t *testing.T) {
		require.NoError(t, docRepo.Detach(ctx, 1, txn.ID, doc.ID))

		docs, err := docRepo.ListByTransaction(ctx, 1, txn.ID)
		require.NoError(t, err)
		assert.Empty(t, docs)

		got, err := docRepo.GetByID(ctx, 1, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
	})

	t.Run("delete removes row and links", func(t *testing.T) {
		require.NoError(t, docRepo.Attach(ctx, 1, txn.ID, doc.ID))
		require.NoError(t, docRepo.Delete(ctx, 1, doc.ID))

		_, err := docRepo.GetByID(ctx, 1, doc.ID)
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		docs, err := docRepo.ListByTransaction(ctx, 1, txn.ID)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("duplicate path is rejected", func(t *testing.T) {
		first := &model.Document{UserID: 1, Filename: "a.pdf", FilePath: "1/2024/03/dup_a.pdf", FileSize: 1}
		_, err := docRepo.Create(ctx, first)
		require.NoError(t, err)

		second := &model.Document{UserID: 1, Filename: "b.pdf", FilePath: "1/2024/03/dup_a.pdf", FileSize: 2}
		_, err = docRepo.Create(ctx, second)
		assert.Error(t, err)
	})
}

func TestUserRepository(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.User{Email: " Bee@Example.com ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "bee@example.com", created.Email)

	t.Run("email lookup is normalized", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "BEE@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.User{Email: "bee@example.com", PasswordHash: "other"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
