package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis      RedisConfig
	RateLimit  RateLimitConfig
	LLM        LLMConfig
	Generation GenerationLimits
}

// TelemetryConfig feeds the logger, tracer and meter providers.
type TelemetryConfig struct {
	LogLevel         string
	LogFormat        string
	OtelEnabled      bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig controls admission of generation requests per user.
type RateLimitConfig struct {
	Enabled             bool
	GenerationUserRate  float64
	GenerationUserBurst int
}

// LLMConfig describes the upstream chat-completion provider.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	ConnectTimeout time.Duration
}

// GenerationLimits bounds the inbound generation request.
type GenerationLimits struct {
	MaxQuestionLength int
	MaxCards          int
	Timeout           time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "xingyu"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "xingyu.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		Telemetry: TelemetryConfig{
			LogLevel:         strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:        strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:      getenvBool("OTEL_ENABLED", true),
			ExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),
			ExporterProtocol: otlpProtocol(),
			SamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:             getenvBool("RATE_LIMIT_ENABLED", false),
			GenerationUserRate:  getenvFloat("RATE_LIMIT_GENERATION_USER_RATE", 0.2),
			GenerationUserBurst: getenvInt("RATE_LIMIT_GENERATION_USER_BURST", 3),
		},
		LLM: LLMConfig{
			BaseURL:        strings.TrimRight(strings.TrimSpace(getenv("LLM_BASE_URL", "https://api.openai.com/v1")), "/"),
			APIKey:         strings.TrimSpace(getenv("LLM_API_KEY", "")),
			Model:          getenv("LLM_MODEL", "gpt-3.5-turbo"),
			Temperature:    getenvFloat("LLM_TEMPERATURE", 0.7),
			ConnectTimeout: getenvDuration("LLM_CONNECT_TIMEOUT", 30*time.Second),
		},
		Generation: GenerationLimits{
			MaxQuestionLength: getenvInt("GENERATION_MAX_QUESTION_LENGTH", 500),
			MaxCards:          getenvInt("GENERATION_MAX_CARDS", 20),
			Timeout:           getenvDuration("GENERATION_TIMEOUT", 5*time.Minute),
		},
	}

	return cfg
}

// otlpProtocol prefers the traces-specific protocol over the shared one.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	return strings.ToLower(strings.TrimSpace(protocol))
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
