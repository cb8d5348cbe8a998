package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/xingyu/internal/observability/tracing"
	"github.com/smallbiznis/xingyu/internal/prompt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config is the upstream capability handed to the client at construction.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	ConnectTimeout time.Duration
}

// Streamer opens a streaming chat completion. The returned body yields
// `data: ` frames and must be closed by the caller.
type Streamer interface {
	Stream(ctx context.Context, messages []prompt.Message) (io.ReadCloser, error)
}

var ErrNotConfigured = errors.New("llm_not_configured")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []prompt.Message `json:"messages"`
	Stream      bool             `json:"stream"`
	Temperature float64          `json:"temperature"`
}

type Client struct {
	cfg    Config
	http   *http.Client
	log    *zap.Logger
	tracer trace.Tracer
}

// New builds a client whose timeouts cover connecting and the response
// headers only; the body may stream for as long as the caller's context allows.
func New(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		log:    log.Named("llm.client"),
		tracer: otel.Tracer("xingyu/llm"),
	}
}

func (c *Client) Stream(ctx context.Context, messages []prompt.Message) (io.ReadCloser, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "llm.chat_completions", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(tracing.SafeAttributes(attribute.String("llm.model", c.cfg.Model))...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		span.End()
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	tracing.InjectContext(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "connect failed")
		span.End()
		return nil, fmt.Errorf("connect upstream: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		c.log.Warn("upstream rejected chat request",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
		)
		span.SetStatus(codes.Error, "upstream status")
		span.End()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	c.log.Debug("upstream stream opened", zap.Duration("elapsed", time.Since(start)))
	return &spanBody{ReadCloser: resp.Body, span: span}, nil
}

// spanBody ends the client span when the stream is closed.
// Close may be called concurrently from a context callback and a deferred close.
type spanBody struct {
	io.ReadCloser
	span trace.Span
	once sync.Once
}

func (b *spanBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() { b.span.End() })
	return err
}

var _ Streamer = (*Client)(nil)
