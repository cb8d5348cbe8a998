package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	balancedomain "github.com/smallbiznis/xingyu/internal/balance/domain"
	"github.com/smallbiznis/xingyu/internal/checkin/domain"
	"github.com/smallbiznis/xingyu/internal/clock"
	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/smallbiznis/xingyu/internal/observability/metrics"
	"github.com/smallbiznis/xingyu/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	GenConfig  *config.GenerationConfigHolder
	Ledger     balancedomain.Ledger
	Repo       domain.Repository
	ObsMetrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	genConfig  *config.GenerationConfigHolder
	ledger     balancedomain.Ledger
	repo       domain.Repository
	obsMetrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("checkin.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		genConfig:  p.GenConfig,
		ledger:     p.Ledger,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Checkin records today's check-in and credits the reward in the same
// transaction. The unique (user_id, checkin_date) index settles races.
func (s *Service) Checkin(ctx context.Context, userID snowflake.ID) (domain.Result, error) {
	if userID == 0 {
		return domain.Result{}, domain.ErrUserNotFound
	}

	now := s.clock.Now().UTC()
	row := domain.Checkin{
		ID:           s.genID.Generate(),
		UserID:       userID,
		CheckinDate:  day(now),
		PointsEarned: s.genConfig.Get().CheckinReward,
		CreatedAt:    now,
	}

	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &row); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyCheckedIn
			}
			return err
		}

		credited, err := s.ledger.Credit(ctx, tx, userID, row.PointsEarned)
		if err != nil {
			return err
		}
		balance = credited
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyCheckedIn):
		s.obsMetrics.RecordCheckin(ctx, "duplicate")
		return domain.Result{}, err
	case errors.Is(err, balancedomain.ErrUserNotFound):
		s.obsMetrics.RecordCheckin(ctx, "unknown_user")
		return domain.Result{}, domain.ErrUserNotFound
	default:
		s.obsMetrics.RecordCheckin(ctx, "error")
		s.log.Error("checkin failed", zap.Int64("user_id", int64(userID)), zap.Error(err))
		return domain.Result{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	s.obsMetrics.RecordCheckin(ctx, "credited")
	s.log.Info("checkin credited",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("points", row.PointsEarned),
		zap.Int64("balance", balance),
	)
	return domain.Result{Checkin: row, Balance: balance}, nil
}

func (s *Service) HasCheckedInToday(ctx context.Context, userID snowflake.ID) (bool, error) {
	checkin, err := s.repo.FindByUserAndDate(ctx, s.db, userID, day(s.clock.Now()))
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return checkin != nil, nil
}

const maxStreakLookback = 366

func (s *Service) Stats(ctx context.Context, userID snowflake.ID) (domain.Stats, error) {
	days, err := s.repo.RecentDates(ctx, s.db, userID, maxStreakLookback)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return streak(days, day(s.clock.Now())), nil
}

func streak(days []time.Time, today time.Time) domain.Stats {
	var stats domain.Stats
	if len(days) == 0 {
		return stats
	}

	expected := today
	if latest := day(days[0]); latest.Equal(today) {
		stats.CheckedInToday = true
	} else {
		expected = today.AddDate(0, 0, -1)
	}

	for _, d := range days {
		if !day(d).Equal(expected) {
			break
		}
		stats.ConsecutiveDays++
		expected = expected.AddDate(0, 0, -1)
	}
	return stats
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
