package services

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/validate"
	"github.com/shopspring/decimal"
)

// Totals is the per-currency breakdown of one report window. Expense is
// the absolute sum of expense-coded amounts, so Net = Revenue - Expense.
type Totals struct {
	Revenue decimal.Decimal `json:"revenue"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type CodedTransactionReader interface {
	ListCoded(ctx context.Context, userID int64, from, to time.Time) ([]*model.Transaction, error)
}

type ReportService struct {
	transactionRepo CodedTransactionReader
}

func NewReportService(transactionRepo CodedTransactionReader) *ReportService {
	return &ReportService{
		transactionRepo: transactionRepo,
	}
}

// Summarize aggregates the user's category-coded transactions in the
// window into per-currency totals. Currencies are never summed together
// and every addition stays in decimal.
func (s *ReportService) Summarize(ctx context.Context, userID int64, start, end time.Time) (map[string]Totals, error) {
	if err := validate.DateRange(start, end); err != nil {
		return nil, err
	}

	txns, err := s.transactionRepo.ListCoded(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	report := make(map[string]Totals)
	for _, txn := range txns {
		if txn.Code == nil {
			continue
		}
		totals := report[txn.Currency]
		switch txn.Code.Class {
		case model.CategoryClassRevenue:
			totals.Revenue = totals.Revenue.Add(txn.Amount)
		case model.CategoryClassExpense:
			totals.Expense = totals.Expense.Add(txn.Amount.Abs())
		}
		totals.Net = totals.Revenue.Sub(totals.Expense)
		report[txn.Currency] = totals
	}

	return report, nil
}

var exportHeader = []string{
	"date", "amount", "currency", "description",
	"payee_name", "merchant", "payment_reference", "class", "notes",
}

// ExportCSV writes the user's coded transactions in the window as CSV,
// oldest first.
func (s *ReportService) ExportCSV(ctx context.Context, userID int64, start, end time.Time, w io.Writer) error {
	if err := validate.DateRange(start, end); err != nil {
		return err
	}

	txns, err := s.transactionRepo.ListCoded(ctx, userID, start, end)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, txn := range txns {
		class, notes := "", ""
		if txn.Code != nil {
			class = string(txn.Code.Class)
			notes = txn.Code.Notes
		}
		row := []string{
			txn.Date.Format("2006-01-02"),
			txn.Amount.StringFixed(2),
			txn.Currency,
			txn.Description,
			txn.PayeeName,
			txn.Merchant,
			txn.PaymentReference,
			class,
			notes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
