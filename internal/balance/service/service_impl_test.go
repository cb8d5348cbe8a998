package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/balance/domain"
	"github.com/smallbiznis/xingyu/internal/balance/repository"
	"github.com/smallbiznis/xingyu/internal/clock"
	"github.com/smallbiznis/xingyu/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLedger(t *testing.T, db *gorm.DB) domain.Ledger {
	t.Helper()
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func seedUser(t *testing.T, db *gorm.DB, id snowflake.ID, points int64) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO users (id, uid, nickname, points, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, int64(id)+100000, "tester", points, now, now,
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestDebitApplied(t *testing.T) {
	db := storetest.Open(t)
	seedUser(t, db, 1, 10)
	ledger := newLedger(t, db)

	res, err := ledger.Debit(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.EqualValues(t, 5, res.Balance)

	balance, err := ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 5, balance)
}

func TestDebitInsufficientLeavesBalance(t *testing.T) {
	db := storetest.Open(t)
	seedUser(t, db, 1, 3)
	ledger := newLedger(t, db)

	res, err := ledger.Debit(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	balance, err := ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, balance)
}

func TestDebitExactBalanceReachesZero(t *testing.T) {
	db := storetest.Open(t)
	seedUser(t, db, 1, 5)
	ledger := newLedger(t, db)

	res, err := ledger.Debit(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.EqualValues(t, 0, res.Balance)
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	db := storetest.Open(t)
	ledger := newLedger(t, db)

	_, err := ledger.Debit(context.Background(), 1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = ledger.Debit(context.Background(), 1, -3)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestDebitUnknownUserIsNotApplied(t *testing.T) {
	db := storetest.Open(t)
	ledger := newLedger(t, db)

	res, err := ledger.Debit(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.False(t, res.Applied)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := storetest.Open(t)
	seedUser(t, db, 1, 50)
	ledger := newLedger(t, db)

	const workers = 20
	var (
		wg      sync.WaitGroup
		applied atomic.Int64
		failed  atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.Debit(context.Background(), 1, 5)
			if err != nil {
				failed.Add(1)
				return
			}
			if res.Applied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	if failed.Load() != 0 {
		t.Fatalf("expected no store errors, got %d", failed.Load())
	}
	if applied.Load() != 10 {
		t.Fatalf("expected exactly 10 debits applied, got %d", applied.Load())
	}
	balance, err := ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestCreditInsideTransaction(t *testing.T) {
	db := storetest.Open(t)
	seedUser(t, db, 1, 2)
	ledger := newLedger(t, db)

	var balance int64
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = ledger.Credit(context.Background(), tx, 1, 5)
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, balance)

	_, err = ledger.Credit(context.Background(), db, 99, 5)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDebitStoreFailureIsNotInsufficientFunds(t *testing.T) {
	db := storetest.Open(t)
	seedUser(t, db, 1, 10)
	ledger := newLedger(t, db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	res, err := ledger.Debit(context.Background(), 1, 5)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, res.Applied)
}
