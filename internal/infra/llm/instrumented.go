package llm

import (
	"context"
	"time"

	"repverse/internal/domain/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CallObserver receives one observation per upstream model call.
type CallObserver interface {
	ObserveModelCall(ctx context.Context, model, operation string, elapsed time.Duration, usage ports.TokenUsage, err error)
}

type instrumentedClient struct {
	underlying Client
	observer   CallObserver
	tracer     trace.Tracer
}

// NewInstrumentedClient traces every call and reports it to observer, which
// may be nil.
func NewInstrumentedClient(client Client, observer CallObserver) Client {
	return &instrumentedClient{
		underlying: client,
		observer:   observer,
		tracer:     otel.Tracer("repverse/llm"),
	}
}

func (c *instrumentedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	ctx, span := c.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.model", c.underlying.Model()),
		attribute.Int("llm.images", len(req.Images)),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	))
	defer span.End()

	started := time.Now()
	resp, err := c.underlying.Complete(ctx, req)
	var usage ports.TokenUsage
	if resp != nil {
		usage = resp.Usage
		span.SetAttributes(attribute.Int("llm.total_tokens", usage.TotalTokens))
	}
	c.finish(ctx, span, "complete", started, usage, err)
	return resp, err
}

func (c *instrumentedClient) GenerateImage(ctx context.Context, prompt string) (*ports.GeneratedImage, error) {
	ctx, span := c.tracer.Start(ctx, "llm.generate_image", trace.WithAttributes(
		attribute.String("llm.model", c.underlying.Model()),
	))
	defer span.End()

	started := time.Now()
	img, err := c.underlying.GenerateImage(ctx, prompt)
	if img != nil {
		span.SetAttributes(attribute.Int("llm.image_bytes", len(img.Data)))
	}
	c.finish(ctx, span, "generate_image", started, ports.TokenUsage{}, err)
	return img, err
}

func (c *instrumentedClient) finish(ctx context.Context, span trace.Span, operation string, started time.Time, usage ports.TokenUsage, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if c.observer != nil {
		c.observer.ObserveModelCall(ctx, c.underlying.Model(), operation, time.Since(started), usage, err)
	}
}

func (c *instrumentedClient) Model() string {
	return c.underlying.Model()
}
