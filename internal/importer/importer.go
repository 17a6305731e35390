package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/dedup"
	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/validate"
	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/abrahamus/iBeekeeper/pkg/prom"
)

var (
	// ErrImportInProgress is returned when another import run holds the
	// user's import lock.
	ErrImportInProgress = errors.New("an import is already running for this user")
)

// RecordSource streams raw rows into the pipeline, one at a time. Row
// numbers start at 1 for the first data row. Done reports the clean end
// of the stream.
type RecordSource interface {
	Next() (raw map[string]string, row int, done bool, err error)
}

// TransactionStore is the slice of the transaction repository the
// importer writes through.
type TransactionStore interface {
	CreateBatch(ctx context.Context, txns []*model.Transaction) ([]*model.Transaction, error)
	BackfillProviderFields(ctx context.Context, userID, id int64, payee, merchant, reference string) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunStore persists the run summary and parked review rows.
type RunStore interface {
	UpdateRun(ctx context.Context, run *model.ImportRun) (*model.ImportRun, error)
	CreateReview(ctx context.Context, review *model.ImportReview) (*model.ImportReview, error)
}

// DuplicateChecker classifies one validated record against committed state.
type DuplicateChecker interface {
	Check(ctx context.Context, userID int64, rec *validate.Record) (dedup.Match, error)
}

// Locker is the slice of the redis adapter the per-user import lock uses.
type Locker interface {
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Del(key string) error
}

// Summary is the outcome of one run. Counts partition the input rows.
type Summary struct {
	Imported         int
	SkippedDuplicate int
	PendingReview    int
	Failed           int
	RowErrors        []model.RowError
}

const (
	DefaultChunkSize = 100
	lockKeyPrefix    = "import:lock:"
)

type Config struct {
	ChunkSize int
	LockTTL   time.Duration
}

type Importer struct {
	txns  TransactionStore
	runs  RunStore
	dedup DuplicateChecker
	lock  Locker
	cfg   Config
}

func New(txns TransactionStore, runs RunStore, checker DuplicateChecker, lock Locker, cfg Config) *Importer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Importer{
		txns:  txns,
		runs:  runs,
		dedup: checker,
		lock:  lock,
		cfg:   cfg,
	}
}

// Run drives one import batch and records its summary on the run row.
// Row-level failures are collected, never fatal; a source read error
// fails the whole run. Duplicate checks run against committed state at
// check time, so a re-import of the same file only skips.
func (i *Importer) Run(ctx context.Context, run *model.ImportRun, source RecordSource) (*Summary, error) {
	if run.UserID == 0 {
		return nil, errors.New("import run has no owning user")
	}

	// The lock serializes same-user runs as a courtesy. Correctness does
	// not depend on it: a racing duplicate is caught on the next pass.
	lockKey := fmt.Sprintf("%s%d", lockKeyPrefix, run.UserID)
	acquired, err := i.lock.SetNX(lockKey, []byte(run.ID), i.cfg.LockTTL)
	if err != nil {
		logger.Warn("import lock unavailable, continuing without it", "user_id", run.UserID, "error", err)
	} else if !acquired {
		return nil, ErrImportInProgress
	} else {
		defer func() {
			if err := i.lock.Del(lockKey); err != nil {
				logger.Warn("failed to release import lock", "user_id", run.UserID, "error", err)
			}
		}()
	}

	run.Status = model.ImportRunStatusRunning
	if _, err := i.runs.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	started := time.Now()
	summary, runErr := i.process(ctx, run, source)

	now := time.Now()
	run.CompletedAt = &now
	if summary != nil {
		run.Imported = summary.Imported
		run.SkippedDuplicate = summary.SkippedDuplicate
		run.PendingReview = summary.PendingReview
		run.Failed = summary.Failed
		run.RowErrors = summary.RowErrors
	}
	if runErr != nil {
		run.Status = model.ImportRunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = model.ImportRunStatusCompleted
	}
	if _, err := i.runs.UpdateRun(ctx, run); err != nil {
		logger.Error("failed to persist import run summary", "run_id", run.ID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	prom.AddImportRunDuration(time.Since(started).Seconds())
	logger.Info("import run finished",
		"run_id", run.ID,
		"user_id", run.UserID,
		"source", string(run.Source),
		"status", string(run.Status),
		"imported", run.Imported,
		"skipped_duplicate", run.SkippedDuplicate,
		"pending_review", run.PendingReview,
		"failed", run.Failed,
	)

	return summary, runErr
}

func (i *Importer) process(ctx context.Context, run *model.ImportRun, source RecordSource) (*Summary, error) {
	summary := &Summary{}
	staged := make([]*model.Transaction, 0, i.cfg.ChunkSize)

	// Rows staged earlier in this run are not yet visible to the
	// committed-state duplicate check, so a file repeating a row would
	// import it twice. Their identities are tracked here instead.
	stagedSeen := make(map[string]struct{})

	flush := func() error {
		if len(staged) == 0 {
			return nil
		}
		batch := staged
		staged = staged[:0]
		err := i.txns.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := i.txns.CreateBatch(ctx, batch)
			return err
		})
		if err != nil {
			return err
		}
		summary.Imported += len(batch)
		prom.AddCounterVec(prom.SystemImport, prom.MetricImportRowsProcessed, float64(len(batch)), "imported")
		return nil
	}

	for {
		raw, row, done, err := source.Next()
		if err != nil {
			// a broken source fails the run; committed groups stay
			return summary, fmt.Errorf("reading row %d: %w", row, err)
		}
		if done {
			break
		}

		rec, ferr := validate.ParseRecord(raw)
		if ferr != nil {
			summary.Failed++
			summary.RowErrors = append(summary.RowErrors, model.RowError{
				Row:    row,
				Field:  ferr.Field,
				Reason: ferr.Reason,
			})
			prom.CountImportRow("failed")
			continue
		}

		if _, ok := stagedSeen[stageKey(rec)]; ok {
			summary.SkippedDuplicate++
			prom.CountImportRow("skipped_duplicate")
			continue
		}

		match, err := i.dedup.Check(ctx, run.UserID, rec)
		if err != nil {
			return summary, fmt.Errorf("duplicate check for row %d: %w", row, err)
		}

		switch match.Confidence {
		case dedup.ConfidenceHigh:
			summary.SkippedDuplicate++
			prom.CountImportRow("skipped_duplicate")
			if run.Source == model.ImportSourceProvider {
				// the provider feed often carries fields a manual entry
				// lacks; enrich instead of creating a twin
				err := i.txns.BackfillProviderFields(ctx, run.UserID, match.Transaction.ID,
					rec.PayeeName, rec.Merchant, rec.PaymentReference)
				if err != nil {
					logger.Warn("provider backfill failed",
						"run_id", run.ID, "transaction_id", match.Transaction.ID, "error", err)
				}
			}
		case dedup.ConfidenceMedium:
			review := &model.ImportReview{
				UserID:           run.UserID,
				ImportRunID:      run.ID,
				MatchedID:        match.Transaction.ID,
				Score:            match.Score,
				Status:           model.ImportReviewStatusPending,
				Date:             rec.Date,
				Amount:           rec.Amount,
				Currency:         rec.Currency,
				Description:      rec.Description,
				PayeeName:        rec.PayeeName,
				Merchant:         rec.Merchant,
				PaymentReference: rec.PaymentReference,
			}
			if _, err := i.runs.CreateReview(ctx, review); err != nil {
				return summary, fmt.Errorf("parking row %d for review: %w", row, err)
			}
			summary.PendingReview++
			prom.CountImportRow("pending_review")
		default:
			stagedSeen[stageKey(rec)] = struct{}{}
			staged = append(staged, &model.Transaction{
				UserID:           run.UserID,
				Date:             rec.Date,
				Amount:           rec.Amount,
				Currency:         rec.Currency,
				Description:      rec.Description,
				PayeeName:        rec.PayeeName,
				Merchant:         rec.Merchant,
				PaymentReference: rec.PaymentReference,
			})
			if len(staged) >= i.cfg.ChunkSize {
				if err := flush(); err != nil {
					return summary, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}
	return summary, nil
}

// stageKey is the identity a repeated row shares with its first
// occurrence: the same fields an exact-match duplicate check compares.
func stageKey(rec *validate.Record) string {
	return rec.Date.Format("2006-01-02") + "|" +
		rec.Amount.String() + "|" +
		rec.Currency + "|" +
		dedup.NormalizeDescription(rec.Description)
}
