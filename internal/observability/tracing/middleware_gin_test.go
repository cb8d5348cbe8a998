package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func tracedEngine(t *testing.T, outcome string, status int) *tracetest.SpanRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	engine := gin.New()
	engine.Use(GinMiddlewareWithTracer(provider.Tracer("test")))
	engine.POST("/api/public/ai/tarot", func(c *gin.Context) {
		c.Set("conversation_id", "77")
		if outcome != "" {
			c.Set("stream_outcome", outcome)
		}
		c.Status(status)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/public/ai/tarot", nil))
	require.Equal(t, status, rec.Code)
	return recorder
}

func attributeValue(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.Emit()
		}
	}
	return ""
}

func TestGinMiddlewareMarksFailedStreams(t *testing.T) {
	for _, outcome := range []string{"interrupted", "persist_failed", "timeout"} {
		t.Run(outcome, func(t *testing.T) {
			recorder := tracedEngine(t, outcome, http.StatusOK)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
			assert.Equal(t, "HTTP POST /api/public/ai/tarot", spans[0].Name())
			assert.Equal(t, outcome, attributeValue(spans[0].Attributes(), "stream_outcome"))
			assert.Equal(t, "77", attributeValue(spans[0].Attributes(), "conversation_id"))
		})
	}
}

func TestGinMiddlewareCompletedAndCancelledStreamsAreNotErrors(t *testing.T) {
	for _, outcome := range []string{"completed", "cancelled"} {
		t.Run(outcome, func(t *testing.T) {
			recorder := tracedEngine(t, outcome, http.StatusOK)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.NotEqual(t, codes.Error, spans[0].Status().Code)
			assert.Equal(t, outcome, attributeValue(spans[0].Attributes(), "stream_outcome"))
		})
	}
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	recorder := tracedEngine(t, "", http.StatusBadGateway)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Empty(t, attributeValue(spans[0].Attributes(), "stream_outcome"))
}
