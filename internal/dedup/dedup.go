package dedup

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/repository"
	"github.com/abrahamus/iBeekeeper/internal/validate"
	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/xrash/smetrics"
)

// Confidence classifies how certain the deduplicator is that a candidate
// row already exists.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Match is the outcome of a duplicate check. Transaction is nil when
// Confidence is none.
type Match struct {
	Confidence  Confidence
	Transaction *model.Transaction
	Score       float64
}

// CandidateFinder is the slice of the transaction repository the
// deduplicator needs: the user/date/currency bounded candidate set.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, userID int64, date time.Time, currency string) ([]*model.Transaction, error)
}

const (
	// DefaultSimilarityThreshold is the description similarity at which two
	// descriptions count as the same wording.
	DefaultSimilarityThreshold = 0.85

	// composite score cutoffs
	highScore   = 0.8
	mediumScore = 0.5

	// mediumSimilarityFloor is the minimum description similarity any
	// medium classification requires. Amount equality plus reference and
	// payee credit alone can exceed mediumScore, and an unrelated
	// description must stay none regardless.
	mediumSimilarityFloor = 0.6
)

type Deduplicator struct {
	repo      CandidateFinder
	threshold float64
}

func New(repo CandidateFinder, threshold float64) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{
		repo:      repo,
		threshold: threshold,
	}
}

// Check classifies a validated record against the user's committed
// transactions. The candidate search never leaves the user's rows; a zero
// user id is a programming defect and fails closed.
func (d *Deduplicator) Check(ctx context.Context, userID int64, rec *validate.Record) (Match, error) {
	return d.CheckExcluding(ctx, userID, rec, 0)
}

// CheckExcluding is Check with one transaction left out of the candidate
// set. Edits use it so a transaction is never reported as its own duplicate.
func (d *Deduplicator) CheckExcluding(ctx context.Context, userID int64, rec *validate.Record, excludeID int64) (Match, error) {
	if userID == 0 {
		logger.Error("duplicate check invoked without user scope", "operation", "dedup.Check")
		return Match{Confidence: ConfidenceNone}, repository.ErrMissingUserScope
	}

	candidates, err := d.repo.FindCandidates(ctx, userID, rec.Date, rec.Currency)
	if err != nil {
		return Match{Confidence: ConfidenceNone}, err
	}

	normDesc := NormalizeDescription(rec.Description)
	normRef := normalizeReference(rec.PaymentReference)

	best := Match{Confidence: ConfidenceNone}
	for _, candidate := range candidates {
		if candidate.ID == excludeID {
			continue
		}
		// signed equality: a reversal is not a duplicate of its positive twin
		if !candidate.Amount.Equal(rec.Amount) {
			continue
		}

		conf, score := d.classify(candidate, rec, normDesc, normRef)
		if conf == ConfidenceNone {
			continue
		}
		// candidates arrive earliest-created first, so a tie keeps the
		// earlier row
		if rank(conf) > rank(best.Confidence) {
			best = Match{Confidence: conf, Transaction: candidate, Score: score}
		}
	}

	return best, nil
}

func (d *Deduplicator) classify(candidate *model.Transaction, rec *validate.Record, normDesc, normRef string) (Confidence, float64) {
	candDesc := NormalizeDescription(candidate.Description)

	if candDesc != "" && candDesc == normDesc {
		return ConfidenceHigh, 1.0
	}

	similarity := descriptionSimilarity(normDesc, candDesc)

	// amount already matched exactly to get here
	score := 0.4
	if similarity >= d.threshold {
		score += 0.35
	} else {
		score += similarity * 0.25
	}

	// reference and payee agreement nudge the score but never turn a
	// sub-threshold description into a duplicate on their own
	if normRef != "" && candidate.PaymentReference != "" {
		candRef := normalizeReference(candidate.PaymentReference)
		if candRef == normRef {
			score += 0.15
		} else if strings.Contains(candRef, normRef) || strings.Contains(normRef, candRef) {
			score += 0.1
		}
	}
	if rec.PayeeName != "" && candidate.PayeeName != "" {
		payeeSim := descriptionSimilarity(
			strings.ToLower(strings.TrimSpace(rec.PayeeName)),
			strings.ToLower(strings.TrimSpace(candidate.PayeeName)),
		)
		score += payeeSim * 0.1
	}
	if score > 1.0 {
		score = 1.0
	}

	switch {
	case similarity >= d.threshold && score >= highScore:
		return ConfidenceHigh, score
	case similarity >= mediumSimilarityFloor && score > mediumScore:
		return ConfidenceMedium, score
	default:
		return ConfidenceNone, score
	}
}

func rank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(payment|transfer|debit|credit)\b`),
	regexp.MustCompile(`\bref\s*:?\s*\w+\b`),
	regexp.MustCompile(`\btransaction\s*id\s*:?\s*\w+\b`),
}

// NormalizeDescription folds case, collapses whitespace and strips
// banking noise tokens whose presence varies between statement sources.
func NormalizeDescription(s string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	for _, pattern := range noisePatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	return strings.Join(strings.Fields(normalized), " ")
}

func normalizeReference(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "")
}

// descriptionSimilarity is a matching-blocks ratio in [0, 1]. With
// insert/delete cost 1 and substitution cost 2 the edit distance equals
// len1+len2-2*LCS, so the ratio reduces to 2*LCS/(len1+len2).
func descriptionSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return 1 - float64(dist)/float64(len(a)+len(b))
}
