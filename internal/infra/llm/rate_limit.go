package llm

import (
	"context"
	"fmt"

	"repverse/internal/domain/ports"

	"golang.org/x/time/rate"
)

// rateLimitedClient waits on a shared token bucket before each upstream call.
type rateLimitedClient struct {
	underlying Client
	limiter    *rate.Limiter
}

// NewRateLimitedClient caps calls to rps with the given burst. A non-positive
// rps returns client unchanged.
func NewRateLimitedClient(client Client, rps float64, burst int) Client {
	if rps <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedClient{underlying: client, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *rateLimitedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.underlying.Complete(ctx, req)
}

func (c *rateLimitedClient) GenerateImage(ctx context.Context, prompt string) (*ports.GeneratedImage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.underlying.GenerateImage(ctx, prompt)
}

func (c *rateLimitedClient) Model() string {
	return c.underlying.Model()
}
