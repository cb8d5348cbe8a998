package tracing

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUserText(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("question", "will I find love?"),
		attribute.String("http.route", "/api/public/ai/tarot"),
		attribute.Int("http.status_code", 200),
	)

	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("question"), attr.Key)
	}
}

func TestSafeAttributesTruncatesLongValues(t *testing.T) {
	attrs := SafeAttributes(attribute.String("http.route", strings.Repeat("a", 400)))
	assert.Len(t, attrs[0].Value.AsString(), maxAttributeLength)
}

func TestSafeErrorStripsWrappedCause(t *testing.T) {
	err := fmt.Errorf("upstream_unavailable: dial tcp 10.0.0.1:443: %w", errors.New("refused"))
	assert.EqualError(t, SafeError(err), "upstream_unavailable")
	assert.Nil(t, SafeError(nil))
}
