package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"repverse/internal/domain/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "repverse"

// MetricsCollector records agent, model and HTTP metrics. A zero value is a
// valid no-op collector.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	agentCalls   metric.Int64Counter
	agentLatency metric.Float64Histogram

	modelCalls   metric.Int64Counter
	modelLatency metric.Float64Histogram
	modelTokens  metric.Int64Counter

	httpRequests     metric.Int64Counter
	httpLatency      metric.Float64Histogram
	httpResponseSize metric.Int64Histogram
}

// NewMetricsCollector builds a collector backed by a dedicated Prometheus
// registry. When enabled is false the collector drops everything.
func NewMetricsCollector(enabled bool) (*MetricsCollector, error) {
	if !enabled {
		return &MetricsCollector{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	m := &MetricsCollector{provider: provider, registry: registry}
	if m.agentCalls, err = meter.Int64Counter(
		"repverse.agent.calls",
		metric.WithDescription("Evaluator agent calls by flow, agent and outcome"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent_calls counter: %w", err)
	}
	if m.agentLatency, err = meter.Float64Histogram(
		"repverse.agent.latency",
		metric.WithDescription("Evaluator agent latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent_latency histogram: %w", err)
	}
	if m.modelCalls, err = meter.Int64Counter(
		"repverse.llm.requests",
		metric.WithDescription("Upstream model requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm_requests counter: %w", err)
	}
	if m.modelLatency, err = meter.Float64Histogram(
		"repverse.llm.latency",
		metric.WithDescription("Upstream model latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm_latency histogram: %w", err)
	}
	if m.modelTokens, err = meter.Int64Counter(
		"repverse.llm.tokens",
		metric.WithDescription("Tokens exchanged with the model, by direction"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm_tokens counter: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter(
		"repverse.http.requests",
		metric.WithDescription("HTTP requests handled by the server"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_requests counter: %w", err)
	}
	if m.httpLatency, err = meter.Float64Histogram(
		"repverse.http.latency",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_latency histogram: %w", err)
	}
	if m.httpResponseSize, err = meter.Int64Histogram(
		"repverse.http.response.size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_response_size histogram: %w", err)
	}
	return m, nil
}

// Enabled reports whether the collector exports anything.
func (m *MetricsCollector) Enabled() bool {
	return m != nil && m.provider != nil
}

// RecordAgentCall records one evaluator agent invocation.
func (m *MetricsCollector) RecordAgentCall(ctx context.Context, flow, agent string, elapsed time.Duration, err error) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("agent", agent),
		attribute.String("status", outcome(err)),
	)
	m.agentCalls.Add(ctx, 1, attrs)
	m.agentLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// ObserveModelCall records one upstream model call.
func (m *MetricsCollector) ObserveModelCall(ctx context.Context, model, operation string, elapsed time.Duration, usage ports.TokenUsage, err error) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
		attribute.String("status", outcome(err)),
	)
	m.modelCalls.Add(ctx, 1, attrs)
	m.modelLatency.Record(ctx, elapsed.Seconds(), attrs)
	if usage.PromptTokens > 0 {
		m.modelTokens.Add(ctx, int64(usage.PromptTokens), metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "input"),
		))
	}
	if usage.CompletionTokens > 0 {
		m.modelTokens.Add(ctx, int64(usage.CompletionTokens), metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "output"),
		))
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *MetricsCollector) RecordHTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration, responseBytes int64) {
	if !m.Enabled() {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
		attribute.String("status_class", statusClass(status)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpLatency.Record(ctx, elapsed.Seconds(), attrs)
	if responseBytes >= 0 {
		m.httpResponseSize.Record(ctx, responseBytes, attrs)
	}
}

// Handler serves the Prometheus exposition for this collector.
func (m *MetricsCollector) Handler() http.Handler {
	if !m.Enabled() {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics disabled", http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
