// Package tracing provides OpenTelemetry instrumentation for the
// dispatch core's pipeline phases: registry build, per-signature table
// generation, call-site resolution, and diagnostic construction. It is
// adapted directly from the teacher's pkg/tracing/tracing.go (same
// exporter switch, same resource/sampler construction) with the
// HTTP-specific helpers dropped since this core has no HTTP request
// path of its own.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the configuration for the tracing system.
type Config struct {
	ServiceName string

	// ExporterType selects "stdout" or "otlp".
	ExporterType string

	// OTLPEndpoint is used when ExporterType == "otlp".
	OTLPEndpoint string

	// SamplingRate is the trace sampling ratio, 0.0 to 1.0.
	SamplingRate float64

	Enabled bool
}

// DefaultConfig returns a development-friendly configuration: stdout
// exporter, full sampling.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:  "janusc",
		ExporterType: "stdout",
		SamplingRate: 1.0,
		Enabled:      true,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider for one
// compilation process.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	config   *Config
}

// Init initializes the tracing system for a compilation process. The
// returned TracerProvider must be shut down when the process exits.
func Init(config *Config) (*TracerProvider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &TracerProvider{provider: sdktrace.NewTracerProvider(), config: config}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch config.ExporterType {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		endpoint := config.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		exporter, err = otlptrace.New(context.Background(), client)
	default:
		return nil, fmt.Errorf("tracing: unsupported exporter type %q", config.ExporterType)
	}
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(config.ServiceName),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case config.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return &TracerProvider{provider: tp, config: config}, nil
}

// Shutdown gracefully shuts down the tracer provider, flushing any
// buffered spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the dispatch core's named tracer.
func Tracer() trace.Tracer {
	return otel.Tracer("janus-dispatch")
}

// StartSpan starts a span for one pipeline phase.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// WithSpan runs fn inside a span named name, recording fn's error (if
// any) on the span before returning it.
func WithSpan(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// RegistryBuildAttributes returns span attributes for a type-registry
// build-phase span.
func RegistryBuildAttributes(typeCount int) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int("janus.registry.type_count", typeCount)}
}

// ResolutionAttributes returns span attributes for a call-site
// resolution span.
func ResolutionAttributes(functionName string, arity, candidateCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("janus.resolve.function", functionName),
		attribute.Int("janus.resolve.arity", arity),
		attribute.Int("janus.resolve.candidates", candidateCount),
	}
}

// TableGenAttributes returns span attributes for a dispatch-table
// generation span.
func TableGenAttributes(signatureName string, patternCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("janus.tablegen.signature", signatureName),
		attribute.Int("janus.tablegen.patterns", patternCount),
	}
}

// DiagnosticAttributes returns span attributes for a diagnostic
// construction span.
func DiagnosticAttributes(errorCode string, hypothesisCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("janus.diagnostic.code", errorCode),
		attribute.Int("janus.diagnostic.hypotheses", hypothesisCount),
	}
}

// SetError marks the current span as failed.
func SetError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID extracts the trace ID from ctx, for correlating logs with
// spans via pkg/logging's RequestID field.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
