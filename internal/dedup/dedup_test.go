package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/repository"
	"github.com/abrahamus/iBeekeeper/internal/validate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCandidateFinder struct {
	mock.Mock
}

func (m *MockCandidateFinder) FindCandidates(ctx context.Context, userID int64, date time.Time, currency string) ([]*model.Transaction, error) {
	args := m.Called(ctx, userID, date, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

var testDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func testRecord(amount, description string) *validate.Record {
	return &validate.Record{
		Date:        testDate,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		Description: description,
	}
}

func candidate(id int64, amount, description string, createdAt time.Time) *model.Transaction {
	return &model.Transaction{
		ID:          id,
		UserID:      1,
		Date:        testDate,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		Description: description,
		CreatedAt:   createdAt,
	}
}

func TestDeduplicator_MissingUserScope(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)

	_, err := d.Check(context.Background(), 0, testRecord("10.00", "Lunch"))
	assert.ErrorIs(t, err, repository.ErrMissingUserScope)
	repo.AssertNotCalled(t, "FindCandidates")
}

func TestDeduplicator_ExactNormalizedMatch(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{candidate(10, "-125.50", "OFFICE   RENT", time.Now())}, nil)

	match, err := d.Check(ctx, 1, testRecord("-125.50", "office rent"))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, match.Confidence)
	require.NotNil(t, match.Transaction)
	assert.Equal(t, int64(10), match.Transaction.ID)
	assert.Equal(t, 1.0, match.Score)
}

func TestDeduplicator_NoiseTokensStripped(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{candidate(10, "-125.50", "Payment Office Rent Ref: ABC123", time.Now())}, nil)

	match, err := d.Check(ctx, 1, testRecord("-125.50", "Office Rent"))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, match.Confidence)
}

func TestDeduplicator_SimilarDescriptionIsMedium(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{candidate(10, "-125.50", "Office Rent", time.Now())}, nil)

	match, err := d.Check(ctx, 1, testRecord("-125.50", "Office Rent Jan"))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceMedium, match.Confidence)
	require.NotNil(t, match.Transaction)
	assert.Greater(t, match.Score, 0.5)
	assert.Less(t, match.Score, 0.8)
}

func TestDeduplicator_ReversalIsNotDuplicate(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{candidate(10, "125.50", "Office Rent", time.Now())}, nil)

	match, err := d.Check(ctx, 1, testRecord("-125.50", "Office Rent"))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceNone, match.Confidence)
	assert.Nil(t, match.Transaction)
}

func TestDeduplicator_UnrelatedDescriptionIsNone(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{candidate(10, "-125.50", "Grocery store", time.Now())}, nil)

	match, err := d.Check(ctx, 1, testRecord("-125.50", "Office Rent"))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceNone, match.Confidence)
}

func TestDeduplicator_UnrelatedDescriptionStaysNoneDespiteFieldCredit(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	cand := candidate(10, "-125.50", "Grocery store", time.Now())
	cand.PaymentReference = "INV-2024-001"
	cand.PayeeName = "Acme Corp"
	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{cand}, nil)

	// Equal amount, matching reference and payee push the composite score
	// past the medium cutoff, but the descriptions share nothing.
	rec := testRecord("-125.50", "Office Rent")
	rec.PaymentReference = "INV-2024-001"
	rec.PayeeName = "Acme Corp"

	match, err := d.Check(ctx, 1, rec)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceNone, match.Confidence)
	assert.Nil(t, match.Transaction)
}

func TestDeduplicator_EarliestCandidateWinsTies(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	earlier := candidate(10, "-125.50", "Office Rent", time.Now().Add(-time.Hour))
	later := candidate(11, "-125.50", "office rent", time.Now())

	// the repository returns candidates earliest-created first
	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{earlier, later}, nil)

	match, err := d.Check(ctx, 1, testRecord("-125.50", "Office Rent"))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, match.Confidence)
	assert.Equal(t, int64(10), match.Transaction.ID)
}

func TestDeduplicator_CheckExcludingSkipsSelf(t *testing.T) {
	repo := new(MockCandidateFinder)
	d := New(repo, DefaultSimilarityThreshold)
	ctx := context.Background()

	repo.On("FindCandidates", ctx, int64(1), testDate, "USD").Return(
		[]*model.Transaction{candidate(10, "-125.50", "Office Rent", time.Now())}, nil)

	match, err := d.CheckExcluding(ctx, 1, testRecord("-125.50", "Office Rent"), 10)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceNone, match.Confidence)
}

func TestNormalizeDescription(t *testing.T) {
	assert.Equal(t, "office rent", NormalizeDescription("  OFFICE   Rent "))
	assert.Equal(t, "office rent", NormalizeDescription("Payment Office Rent"))
	assert.Equal(t, "office rent", NormalizeDescription("Office Rent Ref: ABC123"))
	assert.Equal(t, "office rent", NormalizeDescription("Office Rent transaction id: 99"))
	assert.Equal(t, "", NormalizeDescription(""))
}
