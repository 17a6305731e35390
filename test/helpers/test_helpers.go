package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/repository"
	"github.com/abrahamus/iBeekeeper/pkg/pg"
	"github.com/abrahamus/iBeekeeper/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.TransactionEntity{},
		&repository.CategoryCodeEntity{},
		&repository.DocumentEntity{},
		&repository.TransactionDocumentEntity{},
		&repository.ImportRunEntity{},
		&repository.ImportReviewEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.Adapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewAdapter("test-"+t.Name(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, email string) *repository.UserEntity {
	ctx := context.Background()
	user := &repository.UserEntity{
		Email:        email,
		PasswordHash: "test-hash",
	}
	err := db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestTransaction(t *testing.T, db *pg.DB, userID int64, date time.Time, amount, currency, description string) *repository.TransactionEntity {
	ctx := context.Background()
	txn := &repository.TransactionEntity{
		UserID:      userID,
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Currency:    currency,
		Description: description,
	}
	err := db.Write(ctx).Create(txn).Error
	require.NoError(t, err)
	return txn
}

func CreateTestCategoryCode(t *testing.T, db *pg.DB, userID, transactionID int64, class string) *repository.CategoryCodeEntity {
	ctx := context.Background()
	code := &repository.CategoryCodeEntity{
		UserID:        userID,
		TransactionID: transactionID,
		Class:         class,
	}
	err := db.Write(ctx).Create(code).Error
	require.NoError(t, err)
	return code
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
