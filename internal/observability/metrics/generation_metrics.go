package metrics

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	GenerationOutcomeInvalidInput        = "invalid_input"
	GenerationOutcomeSpreadNotFound      = "spread_not_found"
	GenerationOutcomeInvalidPricing      = "invalid_pricing"
	GenerationOutcomeInsufficientFunds   = "insufficient_funds"
	GenerationOutcomeUpstreamUnavailable = "upstream_unavailable"
	GenerationOutcomeStoreUnavailable    = "store_unavailable"
	GenerationOutcomeStreaming           = "streaming"
	GenerationOutcomeCompleted           = "completed"
	GenerationOutcomeInterrupted         = "interrupted"
	GenerationOutcomeCancelled           = "cancelled"
)

const (
	DebitResultApplied  = "applied"
	DebitResultRejected = "rejected"
	DebitResultError    = "error"
)

const (
	StoreReasonDeadlineExceeded     = "deadline_exceeded"
	StoreReasonCanceled             = "canceled"
	StoreReasonLockTimeout          = "db_lock_timeout"
	StoreReasonSerializationFailure = "serialization_failure"
	StoreReasonUniqueViolation      = "unique_violation"
	StoreReasonCheckViolation       = "check_violation"
	StoreReasonConnection           = "connection"
	StoreReasonUnknown              = "unknown"
)

// GenerationMetrics captures the health of the metered generation pipeline.
type GenerationMetrics struct {
	outcomes       *prometheus.CounterVec
	debits         *prometheus.CounterVec
	fragments      prometheus.Counter
	streamDuration *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec
}

var (
	generationMetricsOnce sync.Once
	generationMetrics     *GenerationMetrics
)

// Generation returns the singleton generation metrics registry.
func Generation() *GenerationMetrics {
	return GenerationWithConfig(Config{})
}

// GenerationWithConfig returns the singleton generation metrics registry using config labels.
func GenerationWithConfig(cfg Config) *GenerationMetrics {
	generationMetricsOnce.Do(func() {
		generationMetrics = newGenerationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return generationMetrics
}

// NewGenerationMetrics registers generation metrics on the given registerer.
func NewGenerationMetrics(registerer prometheus.Registerer, cfg Config) *GenerationMetrics {
	return newGenerationMetrics(registerer, cfg)
}

func newGenerationMetrics(registerer prometheus.Registerer, cfg Config) *GenerationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "xingyu_generation_outcomes_total",
		Help:        "Generation requests by terminal or rejection outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	debits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "xingyu_balance_debits_total",
		Help:        "Conditional balance debits by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	fragments := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "xingyu_relay_fragments_total",
		Help:        "Content fragments relayed to callers.",
		ConstLabels: constLabels,
	})
	streamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "xingyu_relay_stream_duration_seconds",
		Help:        "Wall time from upstream connect to stream termination.",
		Buckets:     []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "xingyu_store_errors_total",
		Help:        "Persistence failures by operation and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})

	registerer.MustRegister(outcomes, debits, fragments, streamDuration, storeErrors)

	return &GenerationMetrics{
		outcomes:       outcomes,
		debits:         debits,
		fragments:      fragments,
		streamDuration: streamDuration,
		storeErrors:    storeErrors,
	}
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "xingyu"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func (m *GenerationMetrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *GenerationMetrics) IncDebit(result string) {
	if m == nil {
		return
	}
	m.debits.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *GenerationMetrics) IncFragment() {
	if m == nil {
		return
	}
	m.fragments.Inc()
}

func (m *GenerationMetrics) ObserveStream(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.streamDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncStoreError records a persistence failure classified by ClassifyStoreReason.
func (m *GenerationMetrics) IncStoreError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.storeErrors.WithLabelValues(normalizeLabel(operation), ClassifyStoreReason(err)).Inc()
}

// ClassifyStoreReason maps a persistence error to a bounded reason label.
func ClassifyStoreReason(err error) string {
	switch {
	case err == nil:
		return StoreReasonUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return StoreReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return StoreReasonCanceled
	case hasPGCode(err, "55P03"):
		return StoreReasonLockTimeout
	case hasPGCode(err, "40001"):
		return StoreReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return StoreReasonUniqueViolation
	case errors.Is(err, gorm.ErrCheckConstraintViolated), hasPGCode(err, "23514"):
		return StoreReasonCheckViolation
	case errors.Is(err, driver.ErrBadConn), hasPGClass(err, "08"):
		return StoreReasonConnection
	default:
		return StoreReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func hasPGClass(err error, class string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, class)
	}
	return false
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
