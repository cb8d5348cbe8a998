package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/balance/domain"
	"github.com/smallbiznis/xingyu/internal/clock"
	"github.com/smallbiznis/xingyu/internal/observability/metrics"
	"github.com/smallbiznis/xingyu/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.GenerationMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.GenerationMetrics
}

func New(p Params) domain.Ledger {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("balance.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Debit performs the single conditional update. Insufficient funds is not an
// error: it comes back as Applied=false with no effect on the balance.
func (s *Service) Debit(ctx context.Context, userID snowflake.ID, amount int64) (domain.DebitResult, error) {
	if amount <= 0 {
		return domain.DebitResult{}, domain.ErrInvalidAmount
	}

	balance, ok, err := s.repo.DebitIfSufficient(ctx, s.db, userID, amount, s.clock.Now())
	if err != nil {
		s.metrics.IncDebit(metrics.DebitResultError)
		s.metrics.IncStoreError("debit", err)
		s.log.Warn("debit failed",
			zap.Int64("user_id", int64(userID)),
			zap.Int64("amount", amount),
			zap.Bool("transient", db.IsTransient(err)),
			zap.Error(err),
		)
		return domain.DebitResult{}, fmt.Errorf("%w: debit: %w", domain.ErrStoreUnavailable, err)
	}
	if !ok {
		s.metrics.IncDebit(metrics.DebitResultRejected)
		return domain.DebitResult{Applied: false}, nil
	}

	s.metrics.IncDebit(metrics.DebitResultApplied)
	return domain.DebitResult{Applied: true, Balance: balance}, nil
}

// Credit increments the balance on the caller's handle so it can join an
// enclosing transaction.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, userID snowflake.ID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if tx == nil {
		tx = s.db
	}

	balance, ok, err := s.repo.Increment(ctx, tx, userID, amount, s.clock.Now())
	if err != nil {
		s.metrics.IncStoreError("credit", err)
		return 0, fmt.Errorf("%w: credit: %w", domain.ErrStoreUnavailable, err)
	}
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return balance, nil
}

func (s *Service) Get(ctx context.Context, userID snowflake.ID) (int64, error) {
	balance, ok, err := s.repo.Balance(ctx, s.db, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: balance: %w", domain.ErrStoreUnavailable, err)
	}
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return balance, nil
}
