package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"repverse/internal/domain/ports"
	"repverse/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *MetricsCollector) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestMetricsCollectorExportsRecordedSeries(t *testing.T) {
	m, err := NewMetricsCollector(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	ctx := context.Background()
	m.RecordAgentCall(ctx, "quality", "quality_agent", 120*time.Millisecond, nil)
	m.RecordAgentCall(ctx, "review", "employer_agent", 80*time.Millisecond, errors.New("boom"))
	m.ObserveModelCall(ctx, "gemini-2.0-flash", "complete", time.Second, ports.TokenUsage{PromptTokens: 10, CompletionTokens: 4}, nil)
	m.RecordHTTPRequest(ctx, http.MethodPost, "/api/submitWork", http.StatusOK, 2*time.Second, 512)

	code, body := scrape(t, m)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "repverse_agent_calls")
	assert.Contains(t, body, `agent="quality_agent"`)
	assert.Contains(t, body, `status="error"`)
	assert.Contains(t, body, "repverse_llm_requests")
	assert.Contains(t, body, `direction="output"`)
	assert.Contains(t, body, "repverse_http_requests")
	assert.Contains(t, body, `route="/api/submitWork"`)
	assert.Contains(t, body, `status_class="2xx"`)
}

func TestMetricsCollectorDisabledIsNoop(t *testing.T) {
	m, err := NewMetricsCollector(false)
	require.NoError(t, err)
	assert.False(t, m.Enabled())

	ctx := context.Background()
	m.RecordAgentCall(ctx, "quality", "quality_agent", time.Millisecond, nil)
	m.ObserveModelCall(ctx, "mock", "complete", time.Millisecond, ports.TokenUsage{}, nil)
	m.RecordHTTPRequest(ctx, http.MethodGet, "/health", http.StatusOK, time.Millisecond, 2)

	code, _ := scrape(t, m)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NoError(t, m.Shutdown(ctx))

	var nilCollector *MetricsCollector
	assert.NotPanics(t, func() {
		nilCollector.RecordAgentCall(ctx, "quality", "x", 0, nil)
	})
}

func TestOutcomeAndStatusClass(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "canceled", outcome(context.Canceled))
	assert.Equal(t, "error", outcome(errors.New("x")))

	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(0))
}

func TestTracerProviderDisabledUsesNoop(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	assert.False(t, tp.Enabled())

	_, span := tp.StartSpan(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewTracerProvider(context.Background(), config.TracingConfig{Enabled: true, Exporter: "jaeger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter")
}

func TestNewDegradesOnTracingFailure(t *testing.T) {
	obs := New(context.Background(), config.ObservabilityConfig{
		MetricsEnabled: true,
		Tracing:        config.TracingConfig{Enabled: true, Exporter: "jaeger"},
	}, nil)
	require.NotNil(t, obs)
	assert.True(t, obs.Metrics.Enabled())
	assert.False(t, obs.Tracer.Enabled())
	assert.NoError(t, obs.Shutdown(context.Background()))
}
