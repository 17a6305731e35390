package fixtures

import (
	"time"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/shopspring/decimal"
)

var (
	TestUser1 = model.User{
		ID:    1,
		Email: "alice@example.com",
	}

	TestUser2 = model.User{
		ID:    2,
		Email: "bob@example.com",
	}
)

var TestDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func NewTestTransaction(userID int64, date time.Time, amount, currency, description string) *model.Transaction {
	return &model.Transaction{
		UserID:      userID,
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Currency:    currency,
		Description: description,
	}
}

func NewTestCreateRequest(userID int64, amount, currency, description string) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		UserID:      userID,
		Date:        TestDate,
		Amount:      decimal.RequireFromString(amount),
		Currency:    currency,
		Description: description,
	}
}

func NewTestCategoryCode(userID, transactionID int64, class model.CategoryClass) *model.CategoryCode {
	return &model.CategoryCode{
		UserID:        userID,
		TransactionID: transactionID,
		Class:         class,
	}
}

func NewTestDocument(userID int64, filename, path string) *model.Document {
	return &model.Document{
		UserID:   userID,
		Filename: filename,
		FilePath: path,
		FileSize: 1024,
	}
}

var (
	ValidCSVHeader = "date,amount,currency,description,payee_name,merchant,payment_reference"

	ValidCSVRows = []string{
		"2024-03-15,-125.50,USD,Office Rent,Landlord LLC,,RENT-03",
		"2024-03-16,1500.00,USD,Invoice payment,,ACME Corp,INV-42",
		"2024-03-17,-9.99,USD,Coffee,,,",
	}

	InvalidAmounts = []string{
		"",
		"abc",
		"10.005",
		"1000000000.00",
	}
)
