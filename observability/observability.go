// Package observability wires tracing and metrics for the workflow engine
// and orchestrator, grounded on the teacher's pkg/observability: an OTLP-gRPC
// tracer when an endpoint is configured, a stdout exporter otherwise (so a
// trace provider is always live rather than optional), and an OpenTelemetry
// meter backed by the Prometheus exporter, which self-registers with the
// same default registry /metrics already serves.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the run-level instruments the Workflow Engine and Request
// Orchestrator record against: an active-runs gauge, a per-node duration
// histogram, and a tool-error counter.
type Metrics struct {
	ActiveRuns   metric.Int64UpDownCounter
	NodeDuration metric.Float64Histogram
	ToolErrors   metric.Int64Counter
}

// Init wires a tracer provider and a meter provider and returns the
// instruments built from the latter. otlpEndpoint may be empty, in which
// case spans are written to a stdout exporter instead of discarded — the
// ambient observability surface described by SPEC_FULL.md §2A is present
// whether or not an operator has pointed it at a collector.
func Init(ctx context.Context, serviceName, otlpEndpoint string) (*Metrics, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("observability: building resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, res, otlpEndpoint)
	if err != nil {
		return nil, nil, err
	}
	otel.SetTracerProvider(tp)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("observability: building prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(promExporter))
	otel.SetMeterProvider(mp)

	meter := mp.Meter(serviceName)
	activeRuns, err := meter.Int64UpDownCounter("medassist_active_runs",
		metric.WithDescription("number of workflow runs currently in flight"))
	if err != nil {
		return nil, nil, fmt.Errorf("observability: building active runs counter: %w", err)
	}
	nodeDuration, err := meter.Float64Histogram("medassist_node_duration_seconds",
		metric.WithDescription("wall-clock duration of a single workflow node execution"))
	if err != nil {
		return nil, nil, fmt.Errorf("observability: building node duration histogram: %w", err)
	}
	toolErrors, err := meter.Int64Counter("medassist_tool_errors_total",
		metric.WithDescription("tool invocations that returned an error"))
	if err != nil {
		return nil, nil, fmt.Errorf("observability: building tool error counter: %w", err)
	}

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability: shutting down tracer provider: %w", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability: shutting down meter provider: %w", err)
		}
		return nil
	}

	return &Metrics{ActiveRuns: activeRuns, NodeDuration: nodeDuration, ToolErrors: toolErrors}, shutdown, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, otlpEndpoint string) (*sdktrace.TracerProvider, error) {
	if otlpEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(otlpEndpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("observability: building otlp exporter: %w", err)
		}
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res)), nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("observability: building stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res)), nil
}

// Tracer returns a named tracer from the global tracer provider Init set up.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
