package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/spread/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Spread, error) {
	var spread domain.Spread
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, card_count, ai_prompt, point_multiplier, is_enabled, created_at, updated_at
		 FROM tarot_spreads WHERE id = ?`,
		id,
	).Scan(&spread).Error
	if err != nil {
		return nil, err
	}
	if spread.ID == 0 {
		return nil, nil
	}
	return &spread, nil
}

func (r *repo) ListEnabled(ctx context.Context, db *gorm.DB) ([]domain.Summary, error) {
	var spreads []domain.Summary
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, card_count, point_multiplier
		 FROM tarot_spreads
		 WHERE is_enabled = ?
		 ORDER BY point_multiplier DESC, created_at ASC, id ASC`,
		true,
	).Scan(&spreads).Error
	if err != nil {
		return nil, err
	}
	return spreads, nil
}
