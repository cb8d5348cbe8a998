package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/xingyu/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("user.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByUID(ctx context.Context, uid int64) (domain.User, error) {
	if uid <= 0 {
		return domain.User{}, domain.ErrInvalidUID
	}

	user, err := s.repo.FindByUID(ctx, s.db, uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user by uid: %w", err)
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}
