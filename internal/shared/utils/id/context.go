package id

import (
	"context"
	"strings"
)

type contextKey string

const logIDKey contextKey = "repverse.log_id"

// WithLogID stores the request correlation id on the context.
func WithLogID(ctx context.Context, logID string) context.Context {
	logID = strings.TrimSpace(logID)
	if logID == "" {
		return ctx
	}
	return context.WithValue(ctx, logIDKey, logID)
}

// LogIDFromContext returns the correlation id stored on ctx, or "".
func LogIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(logIDKey).(string); ok {
		return v
	}
	return ""
}

// EnsureLogID returns ctx carrying a log id, generating one when absent.
func EnsureLogID(ctx context.Context) (context.Context, string) {
	if existing := LogIDFromContext(ctx); existing != "" {
		return ctx, existing
	}
	logID := NewLogID()
	return WithLogID(ctx, logID), logID
}
