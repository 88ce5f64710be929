package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type sdkSpans struct {
	tracer trace.Tracer
}

func (s sdkSpans) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func newTracedRouter(t *testing.T, subs *fakeSubmissions) (http.Handler, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return NewRouter(RouterDeps{
		Submissions:    subs,
		Jobs:           &fakeJobs{},
		Tracer:         sdkSpans{tracer: provider.Tracer("test")},
		RequestTimeout: time.Minute,
	}), recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestTracingMiddlewareOpensSpanPerRequest(t *testing.T) {
	handler, recorder := newTracedRouter(t, &fakeSubmissions{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(logIDHeader, "log-span")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /health", spans[0].Name())
	assert.Equal(t, "/health", spanAttr(spans[0], "http.route").AsString())
	assert.Equal(t, "log-span", spanAttr(spans[0], "repverse.log_id").AsString())
	assert.Equal(t, int64(http.StatusOK), spanAttr(spans[0], "http.status_code").AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracingMiddlewareMarksServerErrors(t *testing.T) {
	handler, recorder := newTracedRouter(t, &fakeSubmissions{err: errors.New("disk on fire")})

	rec := doJSON(t, handler, http.MethodPost, "/api/employerAction",
		map[string]any{"jobId": "1", "freelancerAddress": "0xabc", "action": "reject", "jobDetails": sampleJob})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/employerAction", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracingMiddlewareNamesUnmatchedRoutes(t *testing.T) {
	handler, recorder := newTracedRouter(t, &fakeSubmissions{})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET unmatched", spans[0].Name())
}
