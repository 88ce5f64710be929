package observability

import (
	"context"
	"errors"

	"repverse/internal/shared/config"
	"repverse/internal/shared/logging"
)

// Observability bundles the metrics collector and tracer provider.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerProvider

	logger logging.Logger
	config config.ObservabilityConfig
}

// New builds the observability components. Failures are logged and degrade
// to no-op components so the service can still start.
func New(ctx context.Context, cfg config.ObservabilityConfig, logger logging.Logger) *Observability {
	logger = logging.OrNop(logger)

	metrics, err := NewMetricsCollector(cfg.MetricsEnabled)
	if err != nil {
		logger.Error("Failed to initialize metrics: %v", err)
		metrics = &MetricsCollector{}
	}

	tracer, err := NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("Failed to initialize tracing: %v", err)
		tracer = &TracerProvider{}
	}

	logger.Info("Observability initialized (metrics=%t, tracing=%t, exporter=%s)",
		metrics.Enabled(), tracer.Enabled(), cfg.Tracing.Exporter)

	return &Observability{
		Metrics: metrics,
		Tracer:  tracer,
		logger:  logger,
		config:  cfg,
	}
}

// Shutdown flushes metrics and spans.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	o.logger.Info("Shutting down observability")
	var errs []error
	if err := o.Metrics.Shutdown(ctx); err != nil {
		o.logger.Error("Failed to shutdown metrics: %v", err)
		errs = append(errs, err)
	}
	if err := o.Tracer.Shutdown(ctx); err != nil {
		o.logger.Error("Failed to shutdown tracing: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the configuration the components were built from.
func (o *Observability) Config() config.ObservabilityConfig {
	return o.config
}
