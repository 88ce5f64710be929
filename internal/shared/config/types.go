package config

import (
	"time"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"

	DefaultLLMProvider   = ProviderGemini
	DefaultLLMModel      = "gemini-2.5-flash"
	DefaultLLMImageModel = "gemini-2.0-flash-preview-image-generation"
	DefaultLLMBaseURL    = "https://generativelanguage.googleapis.com/v1beta"

	DefaultPassThreshold = 7.0
	DefaultVetoThreshold = 5.0
	DefaultMaxRetries    = 2

	DefaultServerPort         = "8080"
	DefaultResolverCacheSize  = 256
	DefaultResolverCacheTTL   = 10 * time.Minute
	DefaultResolverMaxBytes   = 8 << 20
	DefaultIPFSAPIAddress     = "localhost:5001"
	DefaultTracingServiceName = "repverse"

	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// RuntimeConfig captures user-configurable settings shared across binaries.
type RuntimeConfig struct {
	Environment string `json:"environment" yaml:"environment"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	IDStrategy  string `json:"id_strategy" yaml:"id_strategy"`

	LLM           LLMConfig           `json:"llm" yaml:"llm"`
	Evaluation    EvaluationConfig    `json:"evaluation" yaml:"evaluation"`
	Server        ServerConfig        `json:"server" yaml:"server"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Resolver      ResolverConfig      `json:"resolver" yaml:"resolver"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// LLMConfig selects and tunes the generative model backend.
type LLMConfig struct {
	Provider   string `json:"provider" yaml:"provider"`
	Model      string `json:"model" yaml:"model"`
	ImageModel string `json:"image_model" yaml:"image_model"`
	APIKey     string `json:"-" yaml:"api_key"`
	BaseURL    string `json:"base_url" yaml:"base_url"`

	TimeoutSeconds          int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries              int     `json:"max_retries" yaml:"max_retries"`
	RateLimitRPS            float64 `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst          int     `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	CircuitFailureThreshold int     `json:"circuit_failure_threshold" yaml:"circuit_failure_threshold"`
	CircuitTimeoutSeconds   int     `json:"circuit_timeout_seconds" yaml:"circuit_timeout_seconds"`
}

// EvaluationConfig holds the scoring thresholds and the evaluator roster.
type EvaluationConfig struct {
	ParallelAgents bool           `json:"parallel_agents" yaml:"parallel_agents"`
	PassThreshold  float64        `json:"pass_threshold" yaml:"pass_threshold"`
	VetoThreshold  float64        `json:"veto_threshold" yaml:"veto_threshold"`
	MaxRetries     int            `json:"max_retries" yaml:"max_retries"`
	Policies       []PolicyConfig `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// PolicyConfig overrides one evaluator persona. Empty text fields keep the
// built-in wording for a known persona name.
type PolicyConfig struct {
	Name           string `json:"name" yaml:"name"`
	Enabled        *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	QualityPersona string `json:"quality_persona,omitempty" yaml:"quality_persona,omitempty"`
	PositiveHint   string `json:"positive_hint,omitempty" yaml:"positive_hint,omitempty"`
	NegativeHint   string `json:"negative_hint,omitempty" yaml:"negative_hint,omitempty"`
	Guidance       string `json:"guidance,omitempty" yaml:"guidance,omitempty"`
	ReviewPrompt   string `json:"review_prompt,omitempty" yaml:"review_prompt,omitempty"`
}

// ServerConfig configures the HTTP delivery layer.
type ServerConfig struct {
	Port                  string   `json:"port" yaml:"port"`
	AllowedOrigins        []string `json:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// StorageConfig selects the persistence backend. Empty DatabaseURL means in-memory.
type StorageConfig struct {
	DatabaseURL string `json:"-" yaml:"database_url"`
}

// ResolverConfig tunes remote work resolution.
type ResolverConfig struct {
	IPFSAPIAddress  string `json:"ipfs_api" yaml:"ipfs_api"`
	CacheSize       int    `json:"cache_size" yaml:"cache_size"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	MaxFetchBytes   int64  `json:"max_fetch_bytes" yaml:"max_fetch_bytes"`
	TimeoutSeconds  int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ObservabilityConfig toggles metrics and tracing export.
type ObservabilityConfig struct {
	MetricsEnabled bool          `json:"metrics_enabled" yaml:"metrics_enabled"`
	Tracing        TracingConfig `json:"tracing" yaml:"tracing"`
}

// TracingConfig configures the OpenTelemetry trace exporter.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
}

// Timeout returns the per-call model timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP deadline.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns how long resolved work stays cached.
func (c ResolverConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Metadata contains provenance details for loaded configuration.
type Metadata struct {
	sources  map[string]ValueSource
	loadedAt time.Time
	path     string
}

// Sources returns a copy of the provenance map for JSON serialization.
func (m Metadata) Sources() map[string]ValueSource {
	out := make(map[string]ValueSource, len(m.sources))
	for key, value := range m.sources {
		out[key] = value
	}
	return out
}

// Source returns the provenance for a given field.
func (m Metadata) Source(field string) ValueSource {
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// LoadedAt reports when the configuration was materialised.
func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}

// Path returns the config file that was read, or "" when none was found.
func (m Metadata) Path() string {
	return m.path
}

// Overrides conveys caller-specified values that should win over env/file sources.
type Overrides struct {
	LLMProvider    *string
	LLMModel       *string
	Port           *string
	LogLevel       *string
	DatabaseURL    *string
	ParallelAgents *bool
}

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)
