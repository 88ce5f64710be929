package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"repverse/internal/shared/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Retries after the first attempt
	BaseDelay    time.Duration // Base delay for exponential backoff
	MaxDelay     time.Duration // Maximum delay between retries
	JitterFactor float64       // 0.25 = ±25%
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// Retry executes fn with exponential backoff while it returns transient errors.
func Retry(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error, logger logging.Logger) error {
	_, err := RetryWithResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, logger)
	return err
}

// RetryWithResult executes a function that returns a result with retry logic
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)

	var lastErr error
	var zeroValue T

	for attempt := 0; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zeroValue, fmt.Errorf("context cancelled: %w", err)
		}

		if attempt > 0 {
			logger.Debug("Retrying (attempt %d/%d)", attempt+1, config.MaxAttempts+1)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Retry succeeded after %d attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("Attempt %d failed: %v", attempt+1, err)

		if !IsTransient(err) {
			return zeroValue, err
		}

		if attempt == config.MaxAttempts {
			logger.Warn("Max retries (%d) exhausted", config.MaxAttempts+1)
			break
		}

		delay := retryDelay(attempt, config, err)
		logger.Debug("Waiting %v before next retry", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zeroValue, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return zeroValue, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func retryDelay(attempt int, config RetryConfig, err error) time.Duration {
	var transientErr *TransientError
	if As(err, &transientErr) && transientErr.RetryAfter > 0 {
		hinted := time.Duration(transientErr.RetryAfter) * time.Second
		if config.MaxDelay > 0 && hinted > config.MaxDelay {
			return config.MaxDelay
		}
		return hinted
	}
	return calculateBackoff(attempt, config)
}

// calculateBackoff returns baseDelay * 2^attempt, capped and jittered.
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	multiplier := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(config.BaseDelay) * multiplier)

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.JitterFactor > 0 {
		jitter := float64(delay) * config.JitterFactor
		delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
		if delay < 0 {
			delay = config.BaseDelay
		}
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return delay
}
