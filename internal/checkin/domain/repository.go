package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, checkin *Checkin) error
	FindByUserAndDate(ctx context.Context, db *gorm.DB, userID snowflake.ID, day time.Time) (*Checkin, error)
	// RecentDates returns check-in days newest first.
	RecentDates(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]time.Time, error)
}
