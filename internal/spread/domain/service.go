package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// GetByID returns the spread whether or not it is enabled.
	GetByID(ctx context.Context, id snowflake.ID) (Spread, error)
	ListEnabled(ctx context.Context) ([]Summary, error)
	InvalidateListing(ctx context.Context)
}

var (
	ErrInvalidID = errors.New("invalid_spread_id")
	ErrNotFound  = errors.New("spread_not_found")
)
