package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/cache"
	"github.com/smallbiznis/xingyu/internal/spread/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const enabledListingTTL = 10 * time.Minute

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Cache *cache.JSONCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	cache *cache.JSONCache
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("spread.service"),
		repo:  p.Repo,
		cache: p.Cache,
	}
}

// GetByID always reads the store; pricing must never see a stale multiplier.
func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Spread, error) {
	if id <= 0 {
		return domain.Spread{}, domain.ErrInvalidID
	}

	spread, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Spread{}, fmt.Errorf("find spread: %w", err)
	}
	if spread == nil {
		return domain.Spread{}, domain.ErrNotFound
	}
	return *spread, nil
}

func (s *Service) ListEnabled(ctx context.Context) ([]domain.Summary, error) {
	key := cache.Key("tarot", "spreads", "enabled")

	var cached []domain.Summary
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	spreads, err := s.repo.ListEnabled(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list enabled spreads: %w", err)
	}
	if spreads == nil {
		spreads = []domain.Summary{}
	}

	s.cache.Set(ctx, key, spreads, enabledListingTTL)
	return spreads, nil
}

func (s *Service) InvalidateListing(ctx context.Context) {
	s.cache.Delete(ctx, cache.Key("tarot", "spreads", "enabled"))
}
