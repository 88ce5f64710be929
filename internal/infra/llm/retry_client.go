package llm

import (
	"context"
	"time"

	"repverse/internal/domain/ports"
	reperrors "repverse/internal/shared/errors"
	"repverse/internal/shared/logging"
)

// Client is a model backend that answers prompts and draws images.
type Client interface {
	ports.GenerativeClient
	ports.ImageGenerator
}

// retryClient retries transient failures behind a circuit breaker.
type retryClient struct {
	underlying     Client
	retryConfig    reperrors.RetryConfig
	circuitBreaker *reperrors.CircuitBreaker
	logger         logging.Logger
}

// NewRetryClient wraps client with retry and circuit breaker logic.
func NewRetryClient(client Client, retryConfig reperrors.RetryConfig, circuitBreaker *reperrors.CircuitBreaker) Client {
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: circuitBreaker,
		logger:         logging.NewLLMLogger("llm-retry"),
	}
}

func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	started := time.Now()
	resp, err := reperrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (*ports.CompletionResponse, error) {
		return reperrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (*ports.CompletionResponse, error) {
			return c.underlying.Complete(ctx, req)
		})
	}, c.logger)
	if err != nil {
		c.logger.Warn("completion failed after retries (took %v, circuit %s): %v", time.Since(started), c.circuitBreaker.State(), err)
		return nil, err
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		c.logger.Debug("completion succeeded after %v", elapsed)
	}
	return resp, nil
}

func (c *retryClient) GenerateImage(ctx context.Context, prompt string) (*ports.GeneratedImage, error) {
	img, err := reperrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (*ports.GeneratedImage, error) {
		return reperrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (*ports.GeneratedImage, error) {
			return c.underlying.GenerateImage(ctx, prompt)
		})
	}, c.logger)
	if err != nil {
		c.logger.Warn("image generation failed after retries (circuit %s): %v", c.circuitBreaker.State(), err)
		return nil, err
	}
	return img, nil
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}
