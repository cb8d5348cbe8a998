package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("spread_id", "3"),
		attribute.String("user_id", "42"),
		attribute.String("outcome", "completed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("expected user_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordGenerationRequest(context.Background(), "1", "accepted")
	m.RecordPointsDebited(context.Background(), "1", 5)
	m.RecordCheckin(context.Background(), "rewarded")
	m.RecordRateLimitAllowed(context.Background(), "generation")
	m.RecordRateLimitDenied(context.Background(), "generation", "burst")
}
