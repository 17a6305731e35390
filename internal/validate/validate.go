package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldError reports a single rejected input field. It is recoverable
// per row, the surrounding batch keeps going.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// RangeError reports an inverted date range. Unlike FieldError it aborts
// the whole operation.
type RangeError struct {
	Start time.Time
	End   time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range start %s is after end %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

var (
	amountMin = decimal.RequireFromString("0.01")
	amountMax = decimal.RequireFromString("999999999.99")

	dateMin = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	dateMax = time.Date(2100, 12, 31, 0, 0, 0, 0, time.UTC)
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
}

var currencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "CAD": {}, "AUD": {}, "NZD": {},
	"JPY": {}, "CHF": {}, "SEK": {}, "NOK": {}, "DKK": {}, "PLN": {},
	"CZK": {}, "HUF": {}, "RON": {}, "BGN": {}, "TRY": {}, "ILS": {},
	"AED": {}, "SAR": {}, "INR": {}, "SGD": {}, "HKD": {}, "CNY": {},
	"KRW": {}, "THB": {}, "MYR": {}, "IDR": {}, "PHP": {}, "VND": {},
	"ZAR": {}, "NGN": {}, "KES": {}, "EGP": {}, "MXN": {}, "BRL": {},
	"ARS": {}, "CLP": {}, "COP": {}, "PEN": {}, "UAH": {}, "RSD": {},
}

const (
	maxDescriptionLen = 500
	maxPayeeLen       = 200
	maxMerchantLen    = 200
	maxReferenceLen   = 100
	maxNotesLen       = 1000
)

// ParseAmount parses an exact decimal amount. Values that cannot be
// represented at 2-digit scale without loss are rejected, as are values
// outside [0.01, 999999999.99] by magnitude. Zero is allowed.
func ParseAmount(s string) (decimal.Decimal, *FieldError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &FieldError{Field: "amount", Reason: "is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &FieldError{Field: "amount", Reason: "is not a valid number"}
	}
	if d.Exponent() < -2 {
		// Round would lose money silently, so refuse instead.
		if !d.Equal(d.Round(2)) {
			return decimal.Zero, &FieldError{Field: "amount", Reason: "has more than 2 decimal places"}
		}
		d = d.Round(2)
	}
	if d.IsZero() {
		return d, nil
	}
	abs := d.Abs()
	if abs.LessThan(amountMin) || abs.GreaterThan(amountMax) {
		return decimal.Zero, &FieldError{Field: "amount", Reason: "is out of range"}
	}
	return d, nil
}

// ParseDate parses a calendar date in one of the accepted layouts and
// bounds it to [1900-01-01, 2100-12-31].
func ParseDate(s string) (time.Time, *FieldError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &FieldError{Field: "date", Reason: "is required"}
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Before(dateMin) || t.After(dateMax) {
			return time.Time{}, &FieldError{Field: "date", Reason: "is out of range"}
		}
		return t, nil
	}
	return time.Time{}, &FieldError{Field: "date", Reason: "is not a recognized date"}
}

// DateRange enforces start <= end. End before start is a caller defect
// that aborts the operation.
func DateRange(start, end time.Time) error {
	if start.After(end) {
		return &RangeError{Start: start, End: end}
	}
	return nil
}

// Currency uppercases and checks the code against the known ISO 4217 subset.
func Currency(s string) (string, *FieldError) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if c == "" {
		return "", &FieldError{Field: "currency", Reason: "is required"}
	}
	if _, ok := currencies[c]; !ok {
		return "", &FieldError{Field: "currency", Reason: "is not a known currency code"}
	}
	return c, nil
}

// Text trims and bounds a free-text field. Control characters other than
// tab are rejected rather than stripped.
func Text(field, s string, maxLen int, required bool) (string, *FieldError) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return "", &FieldError{Field: field, Reason: "is required"}
		}
		return "", nil
	}
	if len(s) > maxLen {
		return "", &FieldError{Field: field, Reason: fmt.Sprintf("exceeds %d characters", maxLen)}
	}
	for _, r := range s {
		if r < 0x20 && r != '\t' || r == 0x7f {
			return "", &FieldError{Field: field, Reason: "contains control characters"}
		}
	}
	return s, nil
}

func Description(s string) (string, *FieldError) {
	return Text("description", s, maxDescriptionLen, true)
}

func Payee(s string) (string, *FieldError) {
	return Text("payee_name", s, maxPayeeLen, false)
}

func Merchant(s string) (string, *FieldError) {
	return Text("merchant", s, maxMerchantLen, false)
}

func Reference(s string) (string, *FieldError) {
	return Text("payment_reference", s, maxReferenceLen, false)
}

func Notes(s string) (string, *FieldError) {
	return Text("notes", s, maxNotesLen, false)
}

// Record is one normalized transaction row, ready for dedup and insert.
type Record struct {
	Date             time.Time
	Amount           decimal.Decimal
	Currency         string
	Description      string
	PayeeName        string
	Merchant         string
	PaymentReference string
}

// ParseRecord maps a raw field mapping onto a Record. Only the allow-listed
// keys are read; anything else in the input is ignored and never reaches
// persistence.
func ParseRecord(raw map[string]string) (*Record, *FieldError) {
	rec := &Record{}
	var ferr *FieldError

	if rec.Date, ferr = ParseDate(raw["date"]); ferr != nil {
		return nil, ferr
	}
	if rec.Amount, ferr = ParseAmount(raw["amount"]); ferr != nil {
		return nil, ferr
	}
	if rec.Currency, ferr = Currency(raw["currency"]); ferr != nil {
		return nil, ferr
	}
	if rec.Description, ferr = Description(raw["description"]); ferr != nil {
		return nil, ferr
	}
	if rec.PayeeName, ferr = Payee(raw["payee_name"]); ferr != nil {
		return nil, ferr
	}
	if rec.Merchant, ferr = Merchant(raw["merchant"]); ferr != nil {
		return nil, ferr
	}
	if rec.PaymentReference, ferr = Reference(raw["payment_reference"]); ferr != nil {
		return nil, ferr
	}
	return rec, nil
}
