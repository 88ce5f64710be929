package llm

import (
	"fmt"
	"strings"
	"time"

	"repverse/internal/shared/config"
	reperrors "repverse/internal/shared/errors"
	"repverse/internal/shared/logging"
)

// NewClient builds the configured model backend with its decorators:
// retry and circuit breaking outermost, then rate limiting, then
// instrumentation around each upstream attempt.
func NewClient(cfg config.LLMConfig, observer CallObserver, logger logging.Logger) (Client, error) {
	logger = logging.OrNop(logger)

	var base Client
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderMock:
		logger.Warn("using the mock model provider; scores are canned")
		base = NewMockClient()
	case config.ProviderGemini, "":
		gemini, err := NewGeminiClient(cfg.Model, Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			ImageModel: cfg.ImageModel,
			Timeout:    cfg.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		base = gemini
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	client := NewInstrumentedClient(base, observer)
	client = NewRateLimitedClient(client, cfg.RateLimitRPS, cfg.RateLimitBurst)

	retryConfig := reperrors.DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retryConfig.MaxAttempts = cfg.MaxRetries
	}
	breakerConfig := reperrors.DefaultCircuitBreakerConfig()
	if cfg.CircuitFailureThreshold > 0 {
		breakerConfig.FailureThreshold = cfg.CircuitFailureThreshold
	}
	if cfg.CircuitTimeoutSeconds > 0 {
		breakerConfig.Timeout = time.Duration(cfg.CircuitTimeoutSeconds) * time.Second
	}
	breakerConfig.OnStateChange = func(from, to reperrors.CircuitState, name string) {
		logger.Warn("circuit %s: %s -> %s", name, from, to)
	}
	breaker := reperrors.NewCircuitBreaker("llm-"+base.Model(), breakerConfig, logger)

	return NewRetryClient(client, retryConfig, breaker), nil
}
