package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// DebitIfSufficient subtracts amount only when the balance covers it.
	// ok is false when no row qualified.
	DebitIfSufficient(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) (balance int64, ok bool, err error)
	Increment(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) (balance int64, ok bool, err error)
	Balance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (balance int64, ok bool, err error)
}
