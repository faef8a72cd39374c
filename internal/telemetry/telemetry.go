// Package telemetry wires the OpenTelemetry tracer provider shared by
// every long-lived component (coordinator, adapter, registry) and a
// slog helper that attaches the active span's trace/span id to a log
// line, grounded on
// _examples/jinterlante1206-AleutianLocal/services/orchestrator/orchestrator.go's
// otlptracegrpc exporter setup and
// _examples/jinterlante1206-AleutianLocal/services/trace/agent/mcts/crs/persistence.go's
// per-package tracer-plus-logger pairing.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config controls whether tracing exports anywhere, and where.
type Config struct {
	// Enabled turns on the OTLP gRPC exporter. When false, Init installs
	// a no-op tracer provider so every tracer.Start call is free.
	Enabled bool
	// Endpoint is the OTLP collector address (e.g. "localhost:4317").
	Endpoint    string
	ServiceName string
}

// Init installs a global TracerProvider per cfg and returns a shutdown
// func the caller defers. Safe to call with Enabled: false in tests and
// one-off CLI runs that have no collector to talk to.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(oteltrace.NewNoopTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: building otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// WithTrace returns a logger with the active span's trace_id/span_id
// attached, so every log line emitted inside a traced phase/agent call
// can be correlated back to its span without threading the span
// through every call site.
func WithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	span := oteltrace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
