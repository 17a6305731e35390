package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/dedup"
	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/repository"
	"github.com/abrahamus/iBeekeeper/test/helpers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type importHarness struct {
	importer *Importer
	txnRepo  *repository.TransactionRepository
	impRepo  *repository.ImportRepository
}

func setupImporter(t *testing.T) *importHarness {
	db := helpers.SetupTestDB(t)
	_, adapter := helpers.SetupTestRedis(t)

	txnRepo := repository.NewTransactionRepository(db)
	impRepo := repository.NewImportRepository(db)
	checker := dedup.New(txnRepo, dedup.DefaultSimilarityThreshold)

	imp := New(txnRepo, impRepo, checker, adapter, Config{ChunkSize: 2})
	return &importHarness{importer: imp, txnRepo: txnRepo, impRepo: impRepo}
}

func startRun(t *testing.T, h *importHarness, userID int64) *model.ImportRun {
	run, err := h.impRepo.CreateRun(context.Background(), &model.ImportRun{
		ID:     uuid.NewString(),
		UserID: userID,
		Source: model.ImportSourceCSV,
		Status: model.ImportRunStatusQueued,
	})
	require.NoError(t, err)
	return run
}

const csvHeader = "date,amount,currency,description,payee_name,merchant,payment_reference\n"

func TestImporter_RowErrorDoesNotAbortBatch(t *testing.T) {
	h := setupImporter(t)
	ctx := context.Background()
	run := startRun(t, h, 1)

	csv := csvHeader +
		"2024-03-15,-125.50,USD,Office Rent,,,\n" +
		"2024-03-16,abc,USD,Broken row,,,\n" +
		"2024-03-17,1500.00,USD,Invoice payment,,,\n"

	summary, err := h.importer.Run(ctx, run, NewCSVSource(strings.NewReader(csv)))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.SkippedDuplicate)
	require.Len(t, summary.RowErrors, 1)
	assert.Equal(t, 2, summary.RowErrors[0].Row)
	assert.Equal(t, "amount", summary.RowErrors[0].Field)

	// summary lands on the run row
	got, err := h.impRepo.GetRun(ctx, 1, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportRunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Imported)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.RowErrors, 1)
	assert.Equal(t, 2, got.RowErrors[0].Row)
}

func TestImporter_ReimportIsIdempotent(t *testing.T) {
	h := setupImporter(t)
	ctx := context.Background()

	csv := csvHeader +
		"2024-03-15,-125.50,USD,Office Rent,,,\n" +
		"2024-03-16,1500.00,USD,Invoice payment,,,\n"

	first, err := h.importer.Run(ctx, startRun(t, h, 1), NewCSVSource(strings.NewReader(csv)))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Imported)

	second, err := h.importer.Run(ctx, startRun(t, h, 1), NewCSVSource(strings.NewReader(csv)))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.SkippedDuplicate)

	_, total, err := h.txnRepo.List(ctx, 1, model.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestImporter_RepeatedRowInOneFileImportsOnce(t *testing.T) {
	h := setupImporter(t)
	ctx := context.Background()

	// both copies land in the same staged chunk, before anything commits
	csv := csvHeader +
		"2024-03-15,-125.50,USD,Office Rent,,,\n" +
		"2024-03-15,-125.50,USD,Office Rent,,,\n"

	summary, err := h.importer.Run(ctx, startRun(t, h, 1), NewCSVSource(strings.NewReader(csv)))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.SkippedDuplicate)

	_, total, err := h.txnRepo.List(ctx, 1, model.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestImporter_UsersDoNotShareDuplicateState(t *testing.T) {
	h := setupImporter(t)
	ctx := context.Background()

	csv := csvHeader + "2024-03-15,-125.50,USD,Office Rent,,,\n"

	first, err := h.importer.Run(ctx, startRun(t, h, 1), NewCSVSource(strings.NewReader(csv)))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	// the same row for another user is not a duplicate
	second, err := h.importer.Run(ctx, startRun(t, h, 2), NewCSVSource(strings.NewReader(csv)))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Imported)
	assert.Equal(t, 0, second.SkippedDuplicate)
}

func TestImporter_MediumConfidenceParksReview(t *testing.T) {
	h := setupImporter(t)
	ctx := context.Background()

	seed := csvHeader + "2024-03-15,-125.50,USD,Office Rent,,,\n"
	_, err := h.importer.Run(ctx, startRun(t, h, 1), NewCSVSource(strings.NewReader(seed)))
	require.NoError(t, err)

	similar := csvHeader + "2024-03-15,-125.50,USD,Office Rent Jan,,,\n"
	run := startRun(t, h, 1)
	summary, err := h.importer.Run(ctx, run, NewCSVSource(strings.NewReader(similar)))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 1, summary.PendingReview)

	reviews, total, err := h.impRepo.ListPendingReviews(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Office Rent Jan", reviews[0].Description)
	assert.Equal(t, run.ID, reviews[0].ImportRunID)
	assert.Greater(t, reviews[0].Score, 0.5)
}

func TestImporter_ProviderSyncBackfills(t *testing.T) {
	h := setupImporter(t)
	ctx := context.Background()

	seed := csvHeader + "2024-03-15,-125.50,USD,Office Rent,,,\n"
	_, err := h.importer.Run(ctx, startRun(t, h, 1), NewCSVSource(strings.NewReader(seed)))
	require.NoError(t, err)

	run, err := h.impRepo.CreateRun(ctx, &model.ImportRun{
		ID:     uuid.NewString(),
		UserID: 1,
		Source: model.ImportSourceProvider,
		Status: model.ImportRunStatusQueued,
	})
	require.NoError(t, err)

	enriched := csvHeader + "2024-03-15,-125.50,USD,Office Rent,Landlord LLC,ACME Property,RENT-03\n"
	summary, err := h.importer.Run(ctx, run, NewCSVSource(strings.NewReader(enriched)))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SkippedDuplicate)

	txns, _, err := h.txnRepo.List(ctx, 1, model.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Landlord LLC", txns[0].PayeeName)
	assert.Equal(t, "ACME Property", txns[0].Merchant)
	assert.Equal(t, "RENT-03", txns[0].PaymentReference)
}

func TestImporter_LockContention(t *testing.T) {
	db := helpers.SetupTestDB(t)
	_, adapter := helpers.SetupTestRedis(t)

	txnRepo := repository.NewTransactionRepository(db)
	impRepo := repository.NewImportRepository(db)
	checker := dedup.New(txnRepo, dedup.DefaultSimilarityThreshold)
	imp := New(txnRepo, impRepo, checker, adapter, Config{})

	ctx := context.Background()
	run, err := impRepo.CreateRun(ctx, &model.ImportRun{
		ID:     uuid.NewString(),
		UserID: 7,
		Source: model.ImportSourceCSV,
		Status: model.ImportRunStatusQueued,
	})
	require.NoError(t, err)

	// another run holds the user's lock
	acquired, err := adapter.SetNX("import:lock:7", []byte("other-run"), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = imp.Run(ctx, run, NewCSVSource(strings.NewReader(csvHeader)))
	assert.ErrorIs(t, err, ErrImportInProgress)
}

func TestCSVSource_RowNumbering(t *testing.T) {
	src := NewCSVSource(strings.NewReader("Date,Amount,Currency,Description\n2024-03-15,1.00,USD,a\n2024-03-16,2.00,USD,b\n"))

	raw, row, done, err := src.Next()
	require.NoError(t, err)
	require.False(t, done)
	assert.Equal(t, 1, row)
	assert.Equal(t, "2024-03-15", raw["date"])

	_, row, done, err = src.Next()
	require.NoError(t, err)
	require.False(t, done)
	assert.Equal(t, 2, row)

	_, _, done, err = src.Next()
	require.NoError(t, err)
	assert.True(t, done)
}
