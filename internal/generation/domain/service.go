package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/prompt"
	"github.com/smallbiznis/xingyu/internal/relay"
)

// Request is a validated-on-entry ask for one reading. UserID is the
// internal user id, already resolved from the public uid.
type Request struct {
	UserID   snowflake.ID
	SpreadID snowflake.ID
	Question string
	Cards    []prompt.Card
}

// Service runs the metered pipeline up to a connected upstream stream. The
// caller owns the returned session and must Run or Close it.
type Service interface {
	Generate(ctx context.Context, req Request) (*relay.Session, error)
}

// Limiter is optional admission control in front of the debit.
type Limiter interface {
	Allow(ctx context.Context, userID snowflake.ID) (bool, error)
}

var (
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidQuestion     = errors.New("invalid_question")
	ErrInvalidCards        = errors.New("invalid_cards")
	ErrSpreadNotFound      = errors.New("spread_not_found")
	ErrInvalidPricing      = errors.New("invalid_pricing")
	ErrInsufficientFunds   = errors.New("insufficient_funds")
	ErrRateLimited         = errors.New("rate_limited")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
	ErrStoreUnavailable    = errors.New("store_unavailable")
)
