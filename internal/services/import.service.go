package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/google/uuid"
)

var (
	ErrReviewAlreadyDecided = errors.New("review was already decided")
)

type ImportRepository interface {
	CreateRun(ctx context.Context, run *model.ImportRun) (*model.ImportRun, error)
	GetRun(ctx context.Context, userID int64, id string) (*model.ImportRun, error)
	ListPendingReviews(ctx context.Context, userID int64, limit, offset int) ([]*model.ImportReview, int64, error)
	GetReview(ctx context.Context, userID, id int64) (*model.ImportReview, error)
	DecideReview(ctx context.Context, userID, id int64, status model.ImportReviewStatus) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ReviewTransactionWriter interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
}

// JobPublisher is the queue surface the service publishes import jobs to.
type JobPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type ImportService struct {
	importRepo ImportRepository
	txnRepo    ReviewTransactionWriter
	queue      JobPublisher
}

func NewImportService(importRepo ImportRepository, txnRepo ReviewTransactionWriter, queue JobPublisher) *ImportService {
	return &ImportService{
		importRepo: importRepo,
		txnRepo:    txnRepo,
		queue:      queue,
	}
}

// SubmitCSV records a queued run and hands the file to the worker.
func (s *ImportService) SubmitCSV(ctx context.Context, userID int64, path string) (*model.ImportRun, error) {
	return s.submit(ctx, &model.ImportJob{
		RunID:  uuid.NewString(),
		UserID: userID,
		Source: model.ImportSourceCSV,
		Path:   path,
	})
}

// SubmitSync records a queued provider-sync run.
func (s *ImportService) SubmitSync(ctx context.Context, userID int64, since string) (*model.ImportRun, error) {
	return s.submit(ctx, &model.ImportJob{
		RunID:  uuid.NewString(),
		UserID: userID,
		Source: model.ImportSourceProvider,
		Since:  since,
	})
}

func (s *ImportService) submit(ctx context.Context, job *model.ImportJob) (*model.ImportRun, error) {
	run, err := s.importRepo.CreateRun(ctx, &model.ImportRun{
		ID:     job.RunID,
		UserID: job.UserID,
		Source: job.Source,
		Status: model.ImportRunStatusQueued,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.PublishJSON(ctx, job, map[string]string{"run_id": job.RunID}); err != nil {
		return nil, fmt.Errorf("publishing import job: %w", err)
	}
	return run, nil
}

func (s *ImportService) GetRun(ctx context.Context, userID int64, id string) (*model.ImportRun, error) {
	return s.importRepo.GetRun(ctx, userID, id)
}

func (s *ImportService) ListPendingReviews(ctx context.Context, userID int64, limit, offset int) ([]*model.ImportReview, int64, error) {
	return s.importRepo.ListPendingReviews(ctx, userID, limit, offset)
}

// Decide resolves one parked duplicate candidate. Accepting inserts the
// carried row; rejecting just discards it. Either way the decision and
// the insert commit together.
func (s *ImportService) Decide(ctx context.Context, userID, reviewID int64, accept bool) (*model.Transaction, error) {
	review, err := s.importRepo.GetReview(ctx, userID, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Status != model.ImportReviewStatusPending {
		return nil, ErrReviewAlreadyDecided
	}

	if !accept {
		if err := s.importRepo.DecideReview(ctx, userID, reviewID, model.ImportReviewStatusRejected); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var created *model.Transaction
	err = s.importRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.importRepo.DecideReview(ctx, userID, reviewID, model.ImportReviewStatusAccepted); err != nil {
			return err
		}
		txn, err := s.txnRepo.Create(ctx, &model.Transaction{
			UserID:           userID,
			Date:             review.Date,
			Amount:           review.Amount,
			Currency:         review.Currency,
			Description:      review.Description,
			PayeeName:        review.PayeeName,
			Merchant:         review.Merchant,
			PaymentReference: review.PaymentReference,
		})
		if err != nil {
			return err
		}
		created = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
