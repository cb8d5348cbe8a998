package domain

import (
	"context"
	"errors"
)

type Service interface {
	GetByUID(ctx context.Context, uid int64) (User, error)
}

var (
	ErrInvalidUID = errors.New("invalid_uid")
	ErrNotFound   = errors.New("user_not_found")
)
