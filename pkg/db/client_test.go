package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type ledgerRow struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func openLedger(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:db_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := openLedger(t)
	client := NewFromGorm(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Name: "kept"}).Error
	}))
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Name: "dropped"}).Error)
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")
	require.EqualValues(t, 1, countRows(t, conn))
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	conn := openLedger(t)
	client := NewFromGorm(conn)

	require.PanicsWithValue(t, "boom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Name: "panicky"}).Error)
			panic("boom")
		})
	})
	require.Zero(t, countRows(t, conn))
	require.NoError(t, client.Ping(context.Background()))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	require.Error(t, err)
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf, Format: "json"})
	q := newQueryLogger(logg, 50*time.Millisecond)
	statement := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	q.Trace(ctx, time.Now(), statement, nil)
	q.Trace(ctx, time.Now(), statement, gorm.ErrRecordNotFound)
	q.Trace(ctx, time.Now(), statement, errors.New("UNIQUE constraint failed: orders.order_number"))
	require.Empty(t, buf.String())

	q.Trace(ctx, time.Now().Add(-time.Second), statement, nil)
	require.Contains(t, buf.String(), "slow query")
	require.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	q.Trace(ctx, time.Now(), statement, errors.New("connection reset"))
	require.Contains(t, buf.String(), "query failed")
}

func TestQueryLoggerWithoutServiceLoggerDiscards(t *testing.T) {
	require.Equal(t, gormlogger.Discard, newQueryLogger(nil, time.Second))
}
