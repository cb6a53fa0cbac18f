package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Exporter = "zipkin"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.SampleRate = 1.5
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.ServiceName = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestSetupDisabledUsesNoop(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := DefaultConfig()
	cfg.Enabled = false
	p, err := Setup(context.Background(), cfg)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "op")
	assert.NotEmpty(t, TraceID(ctx))
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "boom", ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1)
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestNilProviderShutdown(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
