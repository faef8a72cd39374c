package telemetry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestInit_DisabledInstallsNoopProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	span := oteltrace.SpanFromContext(context.Background())
	require.False(t, span.SpanContext().IsValid())
}

func TestInit_EnabledDialsLazilyAndSucceeds(t *testing.T) {
	// otlptracegrpc.New only dials lazily (no WithBlock), so Init
	// succeeds immediately even with nothing listening on Endpoint; the
	// resulting TracerProvider is real, not a no-op.
	shutdown, err := Init(context.Background(), Config{
		Enabled:     true,
		Endpoint:    "localhost:0",
		ServiceName: "stpasec-test",
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestWithTrace_NoActiveSpanReturnsLoggerUnchanged(t *testing.T) {
	otel.SetTracerProvider(oteltrace.NewNoopTracerProvider())
	logger := slog.Default()
	got := WithTrace(context.Background(), logger)
	require.Same(t, logger, got)
}

func TestWithTrace_NoopTracerStillHasNoValidSpanContext(t *testing.T) {
	// The no-op provider never issues a real SpanContext, so even a
	// started span leaves WithTrace with nothing to attach.
	tp := oteltrace.NewNoopTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger := slog.Default()
	got := WithTrace(ctx, logger)
	require.Same(t, logger, got)
}
