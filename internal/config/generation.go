package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GenerationConfig holds operator-tunable pricing and prompt settings.
type GenerationConfig struct {
	BasePrice       float64 `mapstructure:"basePrice"`
	SystemDirective string  `mapstructure:"systemDirective"`
	FallbackPrompt  string  `mapstructure:"fallbackPrompt"`
	ClosingPrompt   string  `mapstructure:"closingPrompt"`
	CheckinReward   int64   `mapstructure:"checkinReward"`
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		BasePrice:       1,
		SystemDirective: "You are a professional tarot reader. Offer readings in a warm, gentle and insightful voice.",
		FallbackPrompt:  "Please give the user a tarot reading based on the cards below.\n\n",
		ClosingPrompt:   "Based on the information above, give the user a detailed tarot reading covering the meaning of each card, an overall interpretation and advice.",
		CheckinReward:   5,
	}
}

type GenerationConfigHolder struct {
	current atomic.Value // holds GenerationConfig
}

// NewStaticGenerationConfigHolder returns a holder that never reloads.
func NewStaticGenerationConfigHolder(cfg GenerationConfig) *GenerationConfigHolder {
	holder := &GenerationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewGenerationConfigHolder() (*GenerationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("generation")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/xingyu/config")
	v.AddConfigPath("/etc/xingyu")
	v.AddConfigPath(".")

	v.SetEnvPrefix("XINGYU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGenerationConfig()
	v.SetDefault("generation.basePrice", defaults.BasePrice)
	v.SetDefault("generation.systemDirective", defaults.SystemDirective)
	v.SetDefault("generation.fallbackPrompt", defaults.FallbackPrompt)
	v.SetDefault("generation.closingPrompt", defaults.ClosingPrompt)
	v.SetDefault("generation.checkinReward", defaults.CheckinReward)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg GenerationConfig
	if err := v.UnmarshalKey("generation", &cfg); err != nil {
		return nil, err
	}
	if err := validateGenerationConfig(cfg); err != nil {
		return nil, err
	}

	holder := &GenerationConfigHolder{}
	holder.current.Store(cfg)

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GenerationConfig
		if err := v.UnmarshalKey("generation", &updated); err != nil {
			zap.L().Warn("generation config reload failed", zap.Error(err))
			return
		}
		if err := validateGenerationConfig(updated); err != nil {
			zap.L().Warn("invalid generation config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("generation config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *GenerationConfigHolder) Get() GenerationConfig {
	return h.current.Load().(GenerationConfig)
}

func validateGenerationConfig(cfg GenerationConfig) error {
	if cfg.BasePrice <= 0 {
		return errors.New("generation.basePrice must be positive")
	}
	if strings.TrimSpace(cfg.SystemDirective) == "" {
		return errors.New("generation.systemDirective cannot be empty")
	}
	if cfg.CheckinReward <= 0 {
		return errors.New("generation.checkinReward must be positive")
	}
	return nil
}
