package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	balancerepo "github.com/smallbiznis/xingyu/internal/balance/repository"
	balanceservice "github.com/smallbiznis/xingyu/internal/balance/service"
	"github.com/smallbiznis/xingyu/internal/checkin/domain"
	"github.com/smallbiznis/xingyu/internal/checkin/repository"
	"github.com/smallbiznis/xingyu/internal/clock"
	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/smallbiznis/xingyu/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := storetest.Open(t)
	fake := clock.NewFakeClock(time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC))
	now := fake.Now()
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, uid, nickname, points, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		1, 100001, "tester", 2, now, now,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	svc := New(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		GenConfig: config.NewStaticGenerationConfigHolder(config.DefaultGenerationConfig()),
		Ledger:    balanceservice.New(balanceservice.Params{DB: db, Log: log, Clock: fake, Repo: balancerepo.Provide()}),
		Repo:      repository.Provide(),
	})
	return svc, db, fake
}

func TestCheckinCreditsOncePerDay(t *testing.T) {
	svc, db, fake := newService(t)
	ctx := context.Background()

	checked, err := svc.HasCheckedInToday(ctx, 1)
	require.NoError(t, err)
	assert.False(t, checked)

	res, err := svc.Checkin(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 5, res.Checkin.PointsEarned)
	assert.EqualValues(t, 7, res.Balance)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), res.Checkin.CheckinDate)

	checked, err = svc.HasCheckedInToday(ctx, 1)
	require.NoError(t, err)
	assert.True(t, checked)

	_, err = svc.Checkin(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	var points int64
	require.NoError(t, db.Raw(`SELECT points FROM users WHERE id = 1`).Scan(&points).Error)
	assert.EqualValues(t, 7, points)

	// Past midnight UTC a new day starts.
	fake.Advance(time.Hour)
	res, err = svc.Checkin(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 12, res.Balance)
}

func TestCheckinUnknownUserLeavesNoRow(t *testing.T) {
	svc, db, _ := newService(t)

	_, err := svc.Checkin(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	var n int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM user_checkins`).Scan(&n).Error)
	assert.Zero(t, n)
}

func TestStreak(t *testing.T) {
	today := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	d := func(offset int) time.Time { return today.AddDate(0, 0, -offset) }

	assert.Equal(t, domain.Stats{}, streak(nil, today))
	assert.Equal(t, domain.Stats{CheckedInToday: true, ConsecutiveDays: 3}, streak([]time.Time{d(0), d(1), d(2), d(4)}, today))
	assert.Equal(t, domain.Stats{ConsecutiveDays: 2}, streak([]time.Time{d(1), d(2)}, today))
	assert.Equal(t, domain.Stats{}, streak([]time.Time{d(2), d(3)}, today))
}

func TestStatsAfterCheckins(t *testing.T) {
	svc, _, fake := newService(t)
	ctx := context.Background()

	_, err := svc.Checkin(ctx, 1)
	require.NoError(t, err)
	fake.Advance(24 * time.Hour)
	_, err = svc.Checkin(ctx, 1)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, 1)
	require.NoError(t, err)
	assert.True(t, stats.CheckedInToday)
	assert.Equal(t, 2, stats.ConsecutiveDays)
}
