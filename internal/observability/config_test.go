package observability

import (
	"testing"

	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigProjectsTelemetry(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:  " 1.2.0 ",
		Environment: "production",
		Telemetry: config.TelemetryConfig{
			LogLevel:         "warn",
			LogFormat:        "console",
			OtelEnabled:      true,
			ExporterEndpoint: "collector:4318",
			ExporterProtocol: "http",
			SamplingRatio:    0.5,
		},
	})

	assert.Equal(t, "xingyu", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "collector:4318", cfg.OtelExporterEndpoint)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{Environment: "development"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
