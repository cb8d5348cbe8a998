package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Checkin(ctx context.Context, userID snowflake.ID) (Result, error)
	HasCheckedInToday(ctx context.Context, userID snowflake.ID) (bool, error)
	Stats(ctx context.Context, userID snowflake.ID) (Stats, error)
}

var (
	ErrAlreadyCheckedIn = errors.New("already_checked_in")
	ErrUserNotFound     = errors.New("user_not_found")
	ErrStoreUnavailable = errors.New("store_unavailable")
)
