package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/xingyu/internal/storetest"
	"github.com/smallbiznis/xingyu/internal/user/domain"
	"github.com/smallbiznis/xingyu/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetByUID(t *testing.T) {
	db := storetest.Open(t)
	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, uid, nickname, points, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		101, 100001, "stargazer", 12, now, now,
	).Error)

	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	user, err := svc.GetByUID(context.Background(), 100001)
	require.NoError(t, err)
	assert.EqualValues(t, 101, user.ID)
	assert.Equal(t, "stargazer", user.Nickname)
	assert.EqualValues(t, 12, user.Points)
	assert.Nil(t, user.AvatarURL)

	_, err = svc.GetByUID(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByUID(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidUID)
}
