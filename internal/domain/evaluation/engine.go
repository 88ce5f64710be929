// Package evaluation scores submitted work with a roster of independently
// prompted evaluator agents and a master aggregator.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"repverse/internal/domain/ports"
	"repverse/internal/shared/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	FlowQuality = "quality"
	FlowReview  = "review"

	aggregatorName = "master"
	tracerName     = "repverse/evaluation"
)

// Recorder observes every model call the engine makes.
type Recorder interface {
	RecordAgentCall(ctx context.Context, flow, agent string, elapsed time.Duration, err error)
}

// Engine runs the quality-check and review pipelines. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	client   ports.GenerativeClient
	policies PolicySet
	parallel bool
	logger   logging.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelAgents fans agent calls out concurrently. The aggregator still
// waits for every agent and the first failure cancels the rest.
func WithParallelAgents(parallel bool) Option {
	return func(e *Engine) { e.parallel = parallel }
}

// WithLogger sets the engine logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(logger) }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithRecorder attaches a call recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// NewEngine builds an engine over client using the active policies of set.
func NewEngine(client ports.GenerativeClient, set PolicySet, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("evaluation engine requires a generative client")
	}
	if len(set.Active()) == 0 {
		return nil, fmt.Errorf("evaluation engine requires at least one enabled policy")
	}
	e := &Engine{
		client:   client,
		policies: set,
		logger:   logging.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policies returns the roster the engine was built with.
func (e *Engine) Policies() PolicySet {
	return e.policies
}

// runAgents calls fn once per active policy and returns results in policy
// order. Any failure aborts the run.
func runAgents[T any](ctx context.Context, e *Engine, policies []Policy, fn func(ctx context.Context, policy Policy) (T, error)) ([]T, error) {
	results := make([]T, len(policies))

	if !e.parallel || len(policies) == 1 {
		for i, policy := range policies {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			result, err := fn(ctx, policy)
			if err != nil {
				return nil, err
			}
			results[i] = result
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, policy := range policies {
		i, policy := i, policy
		g.Go(func() error {
			result, err := fn(gctx, policy)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// call performs one traced, recorded model call and returns the raw text.
func (e *Engine) call(ctx context.Context, flow, agent string, req ports.CompletionRequest) (string, error) {
	ctx, span := e.tracer.Start(ctx, "evaluation."+flow+"."+agent,
		trace.WithAttributes(
			attribute.String("evaluation.flow", flow),
			attribute.String("evaluation.agent", agent),
			attribute.Bool("evaluation.image", len(req.Images) > 0),
		))
	defer span.End()

	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}
	req.Metadata["flow"] = flow
	req.Metadata["agent"] = agent

	started := time.Now()
	resp, err := e.client.Complete(ctx, req)
	elapsed := time.Since(started)
	if e.recorder != nil {
		e.recorder.RecordAgentCall(ctx, flow, agent, elapsed, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("%s agent %s failed after %v: %v", flow, agent, elapsed, err)
		return "", err
	}
	if resp == nil {
		err := fmt.Errorf("empty response from model")
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	e.logger.Debug("%s agent %s answered in %v", flow, agent, elapsed)
	return resp.Content, nil
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func checkScore(field string, v float64) error {
	if v < 0 || v > 10 {
		return fmt.Errorf("%w: %s %.2f is outside 0..10", ErrUnparsableOpinion, field, v)
	}
	return nil
}

func requireScore(obj map[string]any, field string) (float64, error) {
	v, ok := numberField(obj, field)
	if !ok {
		return 0, fmt.Errorf("%w: missing numeric %q", ErrUnparsableOpinion, field)
	}
	if err := checkScore(field, v); err != nil {
		return 0, err
	}
	return v, nil
}

func optionalList(obj map[string]any, field string) []string {
	list, ok := stringList(obj, field)
	if !ok {
		return []string{}
	}
	return list
}
