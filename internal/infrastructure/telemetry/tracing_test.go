package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newRecordingTracer installs an in-memory span recorder as the global
// tracer provider and restores the previous one when the test ends.
func newRecordingTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
	})

	return recorder
}

func TestStartSpan_RecordsNameAndAttributes(t *testing.T) {
	recorder := newRecordingTracer(t)

	_, span := StartSpan(context.Background(), "orchestrator.SyncChannel",
		WithAttribute(SpanAttrChannelType, "shopify"),
		WithAttribute(SpanAttrResource, "inventory"),
		WithSpanKind(trace.SpanKindClient),
	)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	got := spans[0]
	assert.Equal(t, "orchestrator.SyncChannel", got.Name())
	assert.Equal(t, trace.SpanKindClient, got.SpanKind())
	assert.Contains(t, got.Attributes(), attribute.String(SpanAttrChannelType, "shopify"))
	assert.Contains(t, got.Attributes(), attribute.String(SpanAttrResource, "inventory"))
}

func TestStartServiceSpan_NamesSpanAsServiceDotMethod(t *testing.T) {
	recorder := newRecordingTracer(t)

	_, span := StartServiceSpan(context.Background(), "webhook", "Enqueue")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "webhook.Enqueue", spans[0].Name())
}

func TestRecordError_SetsErrorStatus(t *testing.T) {
	recorder := newRecordingTracer(t)

	_, span := StartSpan(context.Background(), "sync.push")
	RecordError(span, errors.New("remote rejected update"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	got := spans[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "remote rejected update", got.Status().Description)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "exception", got.Events()[0].Name)
}

func TestRecordError_NilErrorIsNoOp(t *testing.T) {
	recorder := newRecordingTracer(t)

	_, span := StartSpan(context.Background(), "sync.push")
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestSetAttributes_SkipsNonStringKeys(t *testing.T) {
	recorder := newRecordingTracer(t)

	_, span := StartSpan(context.Background(), "sync.pull")
	SetAttributes(span,
		SpanAttrSKU, "TSHIRT-S",
		42, "ignored",
		"quantity", int64(12),
	)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.String(SpanAttrSKU, "TSHIRT-S"))
	assert.Contains(t, attrs, attribute.Int64("quantity", 12))
	assert.Len(t, attrs, 2)
}

func TestAddEvent_AttachesAttributes(t *testing.T) {
	recorder := newRecordingTracer(t)

	_, span := StartSpan(context.Background(), "resolver.Resolve")
	AddEvent(span, "conflict_detected",
		SpanAttrResource, "inventory",
		SpanAttrSKU, "MUG-01",
	)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)

	event := spans[0].Events()[0]
	assert.Equal(t, "conflict_detected", event.Name)
	assert.Contains(t, event.Attributes, attribute.String(SpanAttrResource, "inventory"))
	assert.Contains(t, event.Attributes, attribute.String(SpanAttrSKU, "MUG-01"))
}

func TestToAttribute_TypeConversions(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  attribute.KeyValue
	}{
		{"string", "shopify", attribute.String("k", "shopify")},
		{"int", 7, attribute.Int("k", 7)},
		{"int64", int64(7), attribute.Int64("k", 7)},
		{"float64", 1.5, attribute.Float64("k", 1.5)},
		{"bool", true, attribute.Bool("k", true)},
		{"string slice", []string{"a", "b"}, attribute.StringSlice("k", []string{"a", "b"})},
		{"fallback", struct{ X int }{1}, attribute.String("k", "{1}")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toAttribute("k", tt.value))
		})
	}
}
