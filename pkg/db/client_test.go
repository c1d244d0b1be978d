package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	return NewFromConn(conn, 3)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.DB().Exec("CREATE TABLE IF NOT EXISTS tx_probe (id INTEGER PRIMARY KEY, note TEXT)").Error)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec("INSERT INTO tx_probe (note) VALUES ('kept')").Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, client.DB().Raw("SELECT COUNT(*) FROM tx_probe WHERE note = 'kept'").Scan(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.DB().Exec("CREATE TABLE IF NOT EXISTS tx_probe2 (id INTEGER PRIMARY KEY, note TEXT)").Error)

	boom := errors.New("boom")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if insertErr := tx.Exec("INSERT INTO tx_probe2 (note) VALUES ('discarded')").Error; insertErr != nil {
			return insertErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, client.DB().Raw("SELECT COUNT(*) FROM tx_probe2").Scan(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestWithTxRetryDoesNotRetryBusinessErrors(t *testing.T) {
	client := newTestClient(t)

	calls := 0
	rejection := errors.New("insufficient balance")
	err := client.WithTxRetry(context.Background(), func(tx *gorm.DB) error {
		calls++
		return rejection
	})
	require.ErrorIs(t, err, rejection)
	require.Equal(t, 1, calls, "business rejections must not be resubmitted")
}

func TestIsSerializationFailure(t *testing.T) {
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	require.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsSerializationFailure(errors.New("plain")))
	require.False(t, IsSerializationFailure(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "uq_holds_idempotency_key"}, "uq_holds_idempotency_key"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "other"}, "uq_holds_idempotency_key"))
	require.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: holds.idempotency_key"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}
