package observability

import (
	"context"
	"fmt"
	"strings"

	"repverse/internal/shared/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterOTLP   = "otlp"
	ExporterZipkin = "zipkin"

	defaultOTLPEndpoint   = "localhost:4318"
	defaultZipkinEndpoint = "http://localhost:9411/api/v2/spans"
)

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider installs a global tracer provider for cfg. Disabled
// tracing yields a noop tracer and leaves the global provider untouched.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(meterName)}, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = config.DefaultTracingServiceName
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1.0 {
		sampleRate = 1.0
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case ExporterOTLP, "":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case ExporterZipkin:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultZipkinEndpoint
		}
		exporter, err = zipkin.New(endpoint)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(meterName)}, nil
}

// Tracer returns the service tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	if tp == nil || tp.tracer == nil {
		return noop.NewTracerProvider().Tracer(meterName)
	}
	return tp.tracer
}

// Enabled reports whether spans are exported.
func (tp *TracerProvider) Enabled() bool {
	return tp != nil && tp.provider != nil
}

// StartSpan starts a span named name with attrs.
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tp.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if !tp.Enabled() {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}
