package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	otelcodes "go.opentelemetry.io/otel/codes"
)

func TestInitialize_Disabled(t *testing.T) {
	cfg := DefaultConfig("task-engine")
	cfg.Enabled = false

	tp, err := Initialize(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraced_RecordsErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, err := Traced(context.Background(), tracer, "claim", func(ctx context.Context) (string, error) {
		return "", errors.New("no task")
	}, TaskSpanAttributes("WH-1", "A", "", "w-1")...)
	require.Error(t, err)

	got, err := Traced(context.Background(), tracer, "complete", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "claim", spans[0].Name())
	assert.Equal(t, otelcodes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("wms.zone", "A"))
	assert.Equal(t, otelcodes.Ok, spans[1].Status().Code)
}

func TestAttributes(t *testing.T) {
	attrs := Attributes(map[string]any{"count": 3, "zone": "A", "ok": true})
	assert.Len(t, attrs, 3)
	assert.Contains(t, attrs, attribute.Int("count", 3))
}

func TestMapCarrier(t *testing.T) {
	c := MapCarrier{}
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
