package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/smallbiznis/xingyu/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestStreamSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test", Temperature: 0.7}, zap.NewNop())
	body, err := client.Stream(context.Background(), prompt.Messages("sys", "user prompt"))
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: [DONE]\n\n", string(raw))

	assert.Equal(t, "gpt-test", got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, 0.7, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
}

func TestStreamNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "sk-test"}, zap.NewNop())
	_, err := client.Stream(context.Background(), prompt.Messages("sys", "p"))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "overloaded")
}

func TestStreamRequiresConfiguration(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	_, err := client.Stream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStreamConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := New(Config{BaseURL: url, APIKey: "sk-test"}, zap.NewNop())
	_, err := client.Stream(context.Background(), prompt.Messages("sys", "p"))
	assert.Error(t, err)
}

func TestSpanBodyConcurrentCloseEndsSpanOnce(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	_, span := provider.Tracer("test").Start(context.Background(), "chat.completions")
	body := &spanBody{ReadCloser: io.NopCloser(strings.NewReader("data: [DONE]\n\n")), span: span}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = body.Close()
		}()
	}
	wg.Wait()
	require.NoError(t, body.Close())

	assert.Len(t, recorder.Ended(), 1)
}
