package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DebitResult reports whether a conditional debit took effect. Balance is
// the post-debit balance and is only meaningful when Applied is true.
type DebitResult struct {
	Applied bool
	Balance int64
}

// Ledger owns users.points. Debit is the only path that lowers a balance
// and never lets it go negative, however many callers race on one user.
type Ledger interface {
	Debit(ctx context.Context, userID snowflake.ID, amount int64) (DebitResult, error)
	Credit(ctx context.Context, tx *gorm.DB, userID snowflake.ID, amount int64) (int64, error)
	Get(ctx context.Context, userID snowflake.ID) (int64, error)
}

var (
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrUserNotFound     = errors.New("user_not_found")
	ErrStoreUnavailable = errors.New("store_unavailable")
)
