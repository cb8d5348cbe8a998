package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/xingyu/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Stream outcomes that end a 200 response without a saved reading.
var failedStreamOutcomes = map[string]struct{}{
	"interrupted":    {},
	"persist_failed": {},
	"timeout":        {},
}

// GinMiddleware opens a server span per request. Reading streams report
// their outcome through the "conversation_id" and "stream_outcome" context
// keys, since the status code is already 200 when the stream fails.
func GinMiddleware() gin.HandlerFunc {
	return GinMiddlewareWithTracer(otel.Tracer("xingyu/http"))
}

func GinMiddlewareWithTracer(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if conversationID := strings.TrimSpace(c.GetString("conversation_id")); conversationID != "" {
			attrs = append(attrs, attribute.String("conversation_id", conversationID))
		}
		outcome := strings.TrimSpace(c.GetString("stream_outcome"))
		if outcome != "" {
			attrs = append(attrs, attribute.String("stream_outcome", outcome))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if _, failed := failedStreamOutcomes[outcome]; failed {
			span.SetStatus(codes.Error, "stream "+outcome)
			return
		}
		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}
