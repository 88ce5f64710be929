package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	overrides  Overrides
	configPath string
	dotenv     []string
}

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithOverrides applies caller overrides that take highest precedence.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}

// WithConfigPath forces the loader to read configuration from a specific file.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithFileReader injects a custom reader, used primarily for tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		o.readFile = reader
	}
}

// WithDotEnv layers the given .env files underneath the process environment.
func WithDotEnv(paths ...string) Option {
	return func(o *loadOptions) {
		o.dotenv = append(o.dotenv, paths...)
	}
}

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Defaults returns the configuration used when no file, env or override applies.
func Defaults() RuntimeConfig {
	return RuntimeConfig{
		Environment: EnvironmentDevelopment,
		LogLevel:    "info",
		IDStrategy:  "ksuid",
		LLM: LLMConfig{
			Provider:                DefaultLLMProvider,
			Model:                   DefaultLLMModel,
			ImageModel:              DefaultLLMImageModel,
			BaseURL:                 DefaultLLMBaseURL,
			TimeoutSeconds:          120,
			MaxRetries:              3,
			RateLimitRPS:            2.0,
			RateLimitBurst:          4,
			CircuitFailureThreshold: 5,
			CircuitTimeoutSeconds:   30,
		},
		Evaluation: EvaluationConfig{
			PassThreshold: DefaultPassThreshold,
			VetoThreshold: DefaultVetoThreshold,
			MaxRetries:    DefaultMaxRetries,
		},
		Server: ServerConfig{
			Port:                  DefaultServerPort,
			AllowedOrigins:        []string{"*"},
			RequestTimeoutSeconds: 300,
		},
		Resolver: ResolverConfig{
			IPFSAPIAddress:  DefaultIPFSAPIAddress,
			CacheSize:       DefaultResolverCacheSize,
			CacheTTLSeconds: int(DefaultResolverCacheTTL.Seconds()),
			MaxFetchBytes:   DefaultResolverMaxBytes,
			TimeoutSeconds:  30,
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			Tracing: TracingConfig{
				Exporter:    "otlp",
				Endpoint:    "localhost:4318",
				SampleRate:  1.0,
				ServiceName: DefaultTracingServiceName,
			},
		},
	}
}

// Load constructs the runtime configuration by merging defaults, file, env and overrides.
func Load(opts ...Option) (RuntimeConfig, Metadata, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if len(options.dotenv) > 0 {
		lookup, err := withDotEnvFallback(options.envLookup, options.dotenv)
		if err != nil {
			return RuntimeConfig{}, Metadata{}, err
		}
		options.envLookup = lookup
	}

	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}
	cfg := Defaults()

	if err := applyFile(&cfg, &meta, options); err != nil {
		return RuntimeConfig{}, Metadata{}, err
	}

	if err := applyEnv(&cfg, &meta, options.envLookup); err != nil {
		return RuntimeConfig{}, Metadata{}, err
	}

	applyOverrides(&cfg, &meta, options.overrides)

	normalizeRuntimeConfig(&cfg)

	// Without a key the service can still run end to end against the mock backend.
	if cfg.LLM.Provider == ProviderGemini && cfg.LLM.APIKey == "" {
		if cfg.Environment == EnvironmentProduction {
			return RuntimeConfig{}, Metadata{}, fmt.Errorf("llm.api_key is required for provider %q in production", cfg.LLM.Provider)
		}
		cfg.LLM.Provider = ProviderMock
		meta.sources["llm.provider"] = SourceDefault
	}

	if err := Validate(cfg); err != nil {
		return RuntimeConfig{}, Metadata{}, err
	}

	return cfg, meta, nil
}

func applyOverrides(cfg *RuntimeConfig, meta *Metadata, overrides Overrides) {
	if overrides.LLMProvider != nil {
		cfg.LLM.Provider = *overrides.LLMProvider
		meta.sources["llm.provider"] = SourceOverride
	}
	if overrides.LLMModel != nil {
		cfg.LLM.Model = *overrides.LLMModel
		meta.sources["llm.model"] = SourceOverride
	}
	if overrides.Port != nil {
		cfg.Server.Port = *overrides.Port
		meta.sources["server.port"] = SourceOverride
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
		meta.sources["log_level"] = SourceOverride
	}
	if overrides.DatabaseURL != nil {
		cfg.Storage.DatabaseURL = *overrides.DatabaseURL
		meta.sources["storage.database_url"] = SourceOverride
	}
	if overrides.ParallelAgents != nil {
		cfg.Evaluation.ParallelAgents = *overrides.ParallelAgents
		meta.sources["evaluation.parallel_agents"] = SourceOverride
	}
}

func normalizeRuntimeConfig(cfg *RuntimeConfig) {
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.Model = strings.TrimSpace(cfg.LLM.Model)
	cfg.LLM.ImageModel = strings.TrimSpace(cfg.LLM.ImageModel)
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")
	cfg.Server.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Server.Port), ":")
	cfg.Storage.DatabaseURL = strings.TrimSpace(cfg.Storage.DatabaseURL)
	cfg.Observability.Tracing.Exporter = strings.ToLower(strings.TrimSpace(cfg.Observability.Tracing.Exporter))

	origins := cfg.Server.AllowedOrigins[:0]
	for _, origin := range cfg.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.Server.AllowedOrigins = origins

	for i := range cfg.Evaluation.Policies {
		cfg.Evaluation.Policies[i].Name = strings.TrimSpace(cfg.Evaluation.Policies[i].Name)
	}
}

// Validate rejects configurations the service cannot run with.
func Validate(cfg RuntimeConfig) error {
	var problems []string

	switch cfg.LLM.Provider {
	case ProviderGemini, ProviderMock:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported (gemini, mock)", cfg.LLM.Provider))
	}
	if cfg.LLM.Model == "" {
		problems = append(problems, "llm.model must not be empty")
	}
	if cfg.LLM.MaxRetries < 0 {
		problems = append(problems, "llm.max_retries must be >= 0")
	}
	if cfg.LLM.RateLimitRPS < 0 {
		problems = append(problems, "llm.rate_limit_rps must be >= 0")
	}

	if !inScoreRange(cfg.Evaluation.PassThreshold) {
		problems = append(problems, "evaluation.pass_threshold must be within 0..10")
	}
	if !inScoreRange(cfg.Evaluation.VetoThreshold) {
		problems = append(problems, "evaluation.veto_threshold must be within 0..10")
	}
	if cfg.Evaluation.MaxRetries < 0 || cfg.Evaluation.MaxRetries > DefaultMaxRetries {
		problems = append(problems, fmt.Sprintf("evaluation.max_retries must be within 0..%d", DefaultMaxRetries))
	}
	seen := make(map[string]struct{}, len(cfg.Evaluation.Policies))
	for _, policy := range cfg.Evaluation.Policies {
		if policy.Name == "" {
			problems = append(problems, "evaluation.policies entries need a name")
			continue
		}
		if _, dup := seen[policy.Name]; dup {
			problems = append(problems, fmt.Sprintf("evaluation.policies has duplicate name %q", policy.Name))
		}
		seen[policy.Name] = struct{}{}
	}

	if cfg.Server.Port == "" {
		problems = append(problems, "server.port must not be empty")
	}
	if cfg.Resolver.MaxFetchBytes <= 0 {
		problems = append(problems, "resolver.max_fetch_bytes must be > 0")
	}

	tracing := cfg.Observability.Tracing
	if tracing.Enabled {
		switch tracing.Exporter {
		case "otlp", "zipkin":
		default:
			problems = append(problems, fmt.Sprintf("observability.tracing.exporter %q is not supported (otlp, zipkin)", tracing.Exporter))
		}
		if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
			problems = append(problems, "observability.tracing.sample_rate must be within 0..1")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func inScoreRange(v float64) bool {
	return v >= 0 && v <= 10
}
