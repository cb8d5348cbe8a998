package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/xingyu/internal/config"
	generationdomain "github.com/smallbiznis/xingyu/internal/generation/domain"
	"github.com/smallbiznis/xingyu/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyGenerationUser  = "xingyu:ratelimit:generation:user:%d"
	generationEndpoint = "generation"
)

type GenerationLimiterParams struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Redis      *redis.Client    `optional:"true"`
	ObsMetrics *metrics.Metrics `optional:"true"`
}

// GenerationLimiter throttles generation requests per user. It admits
// everything when disabled or when no Redis client is configured.
type GenerationLimiter struct {
	bucket     *TokenBucket
	rate       float64
	burst      int
	log        *zap.Logger
	obsMetrics *metrics.Metrics
}

func NewGenerationLimiter(p GenerationLimiterParams) *GenerationLimiter {
	log := p.Log.Named("ratelimit.generation")
	cfg := p.Config.RateLimit

	limiter := &GenerationLimiter{
		rate:       cfg.GenerationUserRate,
		burst:      cfg.GenerationUserBurst,
		log:        log,
		obsMetrics: p.ObsMetrics,
	}
	if !cfg.Enabled {
		return limiter
	}
	if p.Redis == nil {
		log.Warn("rate limiting enabled without REDIS_ADDR; generation requests are not throttled")
		return limiter
	}
	if cfg.GenerationUserRate <= 0 || cfg.GenerationUserBurst <= 0 {
		log.Warn("generation rate limit must be positive; throttling disabled",
			zap.Float64("rate", cfg.GenerationUserRate),
			zap.Int("burst", cfg.GenerationUserBurst),
		)
		return limiter
	}
	limiter.bucket = NewTokenBucket(p.Redis)
	return limiter
}

func (l *GenerationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *GenerationLimiter) Allow(ctx context.Context, userID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyGenerationUser, int64(userID)), l.rate, l.burst)
	if err != nil {
		return false, err
	}
	if !res.Allowed {
		l.obsMetrics.RecordRateLimitDenied(ctx, generationEndpoint, "user")
		l.log.Debug("generation throttled",
			zap.Int64("user_id", int64(userID)),
			zap.Duration("retry_after", res.RetryAfter),
		)
		return false, nil
	}
	l.obsMetrics.RecordRateLimitAllowed(ctx, generationEndpoint)
	return true, nil
}

var _ generationdomain.Limiter = (*GenerationLimiter)(nil)
