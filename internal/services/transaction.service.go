package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/abrahamus/iBeekeeper/internal/dedup"
	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/validate"
)

var (
	ErrDuplicateTransaction = errors.New("transaction already exists")
	ErrInvalidCategoryClass = errors.New("category class must be revenue or expense")
	// ErrInvalidRequest marks rejected input so the handler layer can
	// tell it apart from infrastructure faults.
	ErrInvalidRequest = errors.New("invalid request")
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByID(ctx context.Context, userID, id int64) (*model.Transaction, error)
	Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	SoftDelete(ctx context.Context, userID, id int64) error
	List(ctx context.Context, userID int64, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type CategoryCodeRepository interface {
	Upsert(ctx context.Context, code *model.CategoryCode) (*model.CategoryCode, error)
	DeleteByTransaction(ctx context.Context, userID, transactionID int64) error
}

type DuplicateChecker interface {
	Check(ctx context.Context, userID int64, rec *validate.Record) (dedup.Match, error)
	CheckExcluding(ctx context.Context, userID int64, rec *validate.Record, excludeID int64) (dedup.Match, error)
}

type TransactionService struct {
	transactionRepo TransactionRepository
	codeRepo        CategoryCodeRepository
	dedup           DuplicateChecker
}

func NewTransactionService(transactionRepo TransactionRepository, codeRepo CategoryCodeRepository, checker DuplicateChecker) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		codeRepo:        codeRepo,
		dedup:           checker,
	}
}

// Create handles manual entry. A high-confidence duplicate is rejected;
// a medium-confidence one is created anyway and the match is returned so
// the caller can surface the warning.
func (s *TransactionService) Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, *dedup.Match, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	rec, ferr := recordFromCreateRequest(p)
	if ferr != nil {
		return nil, nil, ferr
	}

	match, err := s.dedup.Check(ctx, p.UserID, rec)
	if err != nil {
		return nil, nil, err
	}
	if match.Confidence == dedup.ConfidenceHigh {
		return nil, &match, fmt.Errorf("%w: matches transaction %d", ErrDuplicateTransaction, match.Transaction.ID)
	}

	created, err := s.transactionRepo.Create(ctx, &model.Transaction{
		UserID:           p.UserID,
		Date:             rec.Date,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		Description:      rec.Description,
		PayeeName:        rec.PayeeName,
		Merchant:         rec.Merchant,
		PaymentReference: rec.PaymentReference,
	})
	if err != nil {
		return nil, nil, err
	}

	if match.Confidence == dedup.ConfidenceMedium {
		return created, &match, nil
	}
	return created, nil, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, userID, id)
}

func (s *TransactionService) List(ctx context.Context, userID int64, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	if f.From != nil && f.To != nil {
		if err := validate.DateRange(*f.From, *f.To); err != nil {
			return nil, 0, err
		}
	}
	return s.transactionRepo.List(ctx, userID, f)
}

// Update re-validates the whole row and re-runs the duplicate check when
// the identity fields moved, excluding the row itself from the candidates.
func (s *TransactionService) Update(ctx context.Context, userID, id int64, p model.TransactionCreateRequest) (*model.Transaction, *dedup.Match, error) {
	existing, err := s.transactionRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	p.UserID = userID
	if err := p.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	rec, ferr := recordFromCreateRequest(p)
	if ferr != nil {
		return nil, nil, ferr
	}

	var match dedup.Match
	identityMoved := !existing.Amount.Equal(rec.Amount) ||
		existing.Description != rec.Description ||
		!existing.Date.Equal(rec.Date) ||
		existing.Currency != rec.Currency
	if identityMoved {
		match, err = s.dedup.CheckExcluding(ctx, userID, rec, id)
		if err != nil {
			return nil, nil, err
		}
		if match.Confidence == dedup.ConfidenceHigh {
			return nil, &match, fmt.Errorf("%w: matches transaction %d", ErrDuplicateTransaction, match.Transaction.ID)
		}
	}

	updated, err := s.transactionRepo.Update(ctx, &model.Transaction{
		ID:               id,
		UserID:           userID,
		Date:             rec.Date,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		Description:      rec.Description,
		PayeeName:        rec.PayeeName,
		Merchant:         rec.Merchant,
		PaymentReference: rec.PaymentReference,
	})
	if err != nil {
		return nil, nil, err
	}

	if match.Confidence == dedup.ConfidenceMedium {
		return updated, &match, nil
	}
	return updated, nil, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id int64) error {
	return s.transactionRepo.SoftDelete(ctx, userID, id)
}

// Code attaches or replaces the category code on a transaction.
// Reconciliation state follows from the code row's existence.
func (s *TransactionService) Code(ctx context.Context, userID, transactionID int64, class model.CategoryClass, notes string) (*model.CategoryCode, error) {
	if !class.Valid() {
		return nil, ErrInvalidCategoryClass
	}
	if notes != "" {
		trimmed, ferr := validate.Notes(notes)
		if ferr != nil {
			return nil, ferr
		}
		notes = trimmed
	}

	// ownership check before touching the code table
	if _, err := s.transactionRepo.GetByID(ctx, userID, transactionID); err != nil {
		return nil, err
	}

	return s.codeRepo.Upsert(ctx, &model.CategoryCode{
		UserID:        userID,
		TransactionID: transactionID,
		Class:         class,
		Notes:         notes,
	})
}

func (s *TransactionService) Uncode(ctx context.Context, userID, transactionID int64) error {
	if _, err := s.transactionRepo.GetByID(ctx, userID, transactionID); err != nil {
		return err
	}
	return s.codeRepo.DeleteByTransaction(ctx, userID, transactionID)
}

func recordFromCreateRequest(p model.TransactionCreateRequest) (*validate.Record, *validate.FieldError) {
	raw := map[string]string{
		"date":              p.Date.Format("2006-01-02"),
		"amount":            p.Amount.String(),
		"currency":          p.Currency,
		"description":       p.Description,
		"payee_name":        p.PayeeName,
		"merchant":          p.Merchant,
		"payment_reference": p.PaymentReference,
	}
	return validate.ParseRecord(raw)
}
