// Package obs carries the ambient observability stack: OpenTelemetry
// tracing around recognizer driver chunks and a metrics observer for
// transcription events.
package obs

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies the tracer used throughout this module.
const TracerName = "github.com/jwongso/vstream"

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	mu             sync.RWMutex
)

// TraceConfig configures the global tracer provider.
type TraceConfig struct {
	ServiceName  string
	Environment  string
	ExporterType string // "stdout", "otlp", or "none"
	OTLPEndpoint string
	SamplingRate float64
}

// DefaultTraceConfig returns a config with "none" exporting, so tracing
// is inert unless explicitly enabled.
func DefaultTraceConfig() *TraceConfig {
	return &TraceConfig{
		ServiceName:  "vstreamd",
		Environment:  getEnv("VSTREAM_ENVIRONMENT", "development"),
		ExporterType: getEnv("VSTREAM_TRACE_EXPORTER", "none"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		SamplingRate: 1.0,
	}
}

// InitTracing sets up the global tracer provider.
func InitTracing(ctx context.Context, cfg *TraceConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider != nil {
		return fmt.Errorf("tracer provider already initialized")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.ExporterType {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
	case "otlp":
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		exporter, err = otlptrace.New(ctx, client)
		if err != nil {
			return fmt.Errorf("create otlp exporter: %w", err)
		}
	case "none", "":
		exporter = &noopExporter{}
	default:
		return fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	tracer = tracerProvider.Tracer(TracerName)
	return nil
}

// ShutdownTracing flushes and tears down the global tracer provider.
func ShutdownTracing(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider == nil {
		return nil
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	tracerProvider = nil
	tracer = nil
	return nil
}

func getTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if tracer == nil {
		return otel.Tracer(TracerName)
	}
	return tracer
}

// StartSpan starts a span under the global tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return getTracer().Start(ctx, name, opts...)
}

// InstrumentRecognizerChunk starts a span around one Driver.Process
// call, tagged with the chunk size and whether it was a forced final.
func InstrumentRecognizerChunk(ctx context.Context, sessionID string, samples int, forceFinal bool) (context.Context, trace.Span) {
	return StartSpan(ctx, "recognizer.chunk",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("audio.samples", samples),
			attribute.Bool("recognizer.force_final", forceFinal),
		),
	)
}

// InstrumentRecognizerOutcome records the chunk's outcome on an
// already-started span, in place of a separate response span — driver
// chunks are cheap enough that one span per Process call is preferred
// over the request/response span pair the teacher uses for STT calls.
func InstrumentRecognizerOutcome(span trace.Span, outcome string, resultLen int) {
	span.SetAttributes(
		attribute.String("recognizer.outcome", outcome),
		attribute.Int("recognizer.result_length", resultLen),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type noopExporter struct{}

func (noopExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(ctx context.Context) error                                   { return nil }
