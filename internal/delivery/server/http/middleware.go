package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"repverse/internal/shared/logging"
	id "repverse/internal/shared/utils/id"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	RecordHTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration, responseBytes int64)
}

// SpanStarter opens the server span for each request.
type SpanStarter interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

const logIDHeader = "X-Log-Id"

func resolveLogID(r *http.Request) string {
	for _, header := range []string{logIDHeader, "X-Request-Id", "X-Correlation-Id"} {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return value
		}
	}
	return ""
}

// logIDMiddleware attaches a log id to the request context and echoes it in
// the response headers.
func logIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id.LogIDFromContext(ctx) == "" {
			ctx = id.WithLogID(ctx, resolveLogID(c.Request))
		}
		ctx, logID := id.EnsureLogID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(logIDHeader, logID)
		c.Next()
	}
}

// tracingMiddleware wraps each request in a span tagged with its route and
// log id. Server errors mark the span failed.
func tracingMiddleware(tracer SpanStarter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracer == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.StartSpan(c.Request.Context(), c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("repverse.log_id", id.LogIDFromContext(c.Request.Context())),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// loggingMiddleware logs each request and reports it to recorder.
func loggingMiddleware(logger logging.Logger, recorder RequestRecorder) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		status := c.Writer.Status()
		reqLogger := logging.FromContext(c.Request.Context(), logger)
		reqLogger.Info("%s %s -> %d in %s (%d bytes) from %s",
			c.Request.Method, c.Request.URL.Path, status, elapsed.Round(time.Millisecond), c.Writer.Size(), c.ClientIP())
		if recorder != nil {
			recorder.RecordHTTPRequest(c.Request.Context(), c.Request.Method, route, status, elapsed, int64(c.Writer.Size()))
		}
	}
}

// timeoutMiddleware bounds the request context. In-flight model calls observe
// the cancellation and return early.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// recoveryMiddleware turns panics into the standard 500 body.
func recoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context(), logger).Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": messageInternal})
	})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			origins = nil
			corsConfig.AllowAllOrigins = true
			break
		}
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if !corsConfig.AllowAllOrigins {
		if len(origins) == 0 {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = origins
		}
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", logIDHeader}
	corsConfig.ExposeHeaders = []string{logIDHeader}
	return cors.New(corsConfig)
}
