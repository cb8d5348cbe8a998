package ratelimit

import (
	generationdomain "github.com/smallbiznis/xingyu/internal/generation/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewGenerationLimiter),
	fx.Provide(func(l *GenerationLimiter) generationdomain.Limiter { return l }),
)
