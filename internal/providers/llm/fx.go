package llm

import (
	"github.com/smallbiznis/xingyu/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.llm",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Streamer {
	if cfg.LLM.APIKey == "" {
		log.Warn("LLM_API_KEY is empty; generation requests will fail upstream")
	}
	return New(Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		ConnectTimeout: cfg.LLM.ConnectTimeout,
	}, log)
}
