package observability

import (
	"strings"

	"github.com/smallbiznis/xingyu/internal/config"
)

// Config is the slice of service configuration the logger, tracer and
// meters need.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "xingyu"
	}
	telemetry := cfg.Telemetry
	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             telemetry.LogLevel,
		LogFormat:            telemetry.LogFormat,
		OtelEnabled:          telemetry.OtelEnabled,
		OtelExporterEndpoint: telemetry.ExporterEndpoint,
		OtelExporterProtocol: telemetry.ExporterProtocol,
		OtelSamplingRatio:    telemetry.SamplingRatio,
	}
}

// Debug turns on gin debug mode, stack traces on request errors and
// verbose SQL logging.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
