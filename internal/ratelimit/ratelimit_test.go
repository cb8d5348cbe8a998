package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseResultAllowed(t *testing.T) {
	res, err := parseResult([]interface{}{int64(1), "2.5", int64(1760690000000)}, 0.2, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, 3, res.Limit)
	assert.Zero(t, res.RetryAfter)
}

func TestParseResultDeniedComputesRetryAfter(t *testing.T) {
	res, err := parseResult([]interface{}{int64(0), "0.5", int64(1760690000000)}, 0.5, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)
}

func TestParseResultRejectsShortReply(t *testing.T) {
	_, err := parseResult([]interface{}{int64(1)}, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, bucketTTL(0.2, 3))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestNilTokenBucketIsNotConfigured(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, NewTokenBucket(nil))
}

func TestGenerationLimiterAdmitsWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, GenerationUserRate: 1, GenerationUserBurst: 1}}
	limiter := NewGenerationLimiter(GenerationLimiterParams{Config: cfg, Log: zap.NewNop()})

	assert.False(t, limiter.Enabled())
	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
