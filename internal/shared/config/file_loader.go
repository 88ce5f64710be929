package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnvVar  = "REPVERSE_CONFIG"
	defaultConfigFile = "repverse.yaml"
)

// FileConfig mirrors RuntimeConfig with optional fields so provenance can be tracked.
type FileConfig struct {
	Environment *string `yaml:"environment"`
	LogLevel    *string `yaml:"log_level"`
	IDStrategy  *string `yaml:"id_strategy"`

	LLM *struct {
		Provider                *string  `yaml:"provider"`
		Model                   *string  `yaml:"model"`
		ImageModel              *string  `yaml:"image_model"`
		APIKey                  *string  `yaml:"api_key"`
		BaseURL                 *string  `yaml:"base_url"`
		TimeoutSeconds          *int     `yaml:"timeout_seconds"`
		MaxRetries              *int     `yaml:"max_retries"`
		RateLimitRPS            *float64 `yaml:"rate_limit_rps"`
		RateLimitBurst          *int     `yaml:"rate_limit_burst"`
		CircuitFailureThreshold *int     `yaml:"circuit_failure_threshold"`
		CircuitTimeoutSeconds   *int     `yaml:"circuit_timeout_seconds"`
	} `yaml:"llm"`

	Evaluation *struct {
		ParallelAgents *bool          `yaml:"parallel_agents"`
		PassThreshold  *float64       `yaml:"pass_threshold"`
		VetoThreshold  *float64       `yaml:"veto_threshold"`
		MaxRetries     *int           `yaml:"max_retries"`
		Policies       []PolicyConfig `yaml:"policies"`
	} `yaml:"evaluation"`

	Server *struct {
		Port                  *string  `yaml:"port"`
		AllowedOrigins        []string `yaml:"allowed_origins"`
		RequestTimeoutSeconds *int     `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	Storage *struct {
		DatabaseURL *string `yaml:"database_url"`
	} `yaml:"storage"`

	Resolver *struct {
		IPFSAPIAddress  *string `yaml:"ipfs_api"`
		CacheSize       *int    `yaml:"cache_size"`
		CacheTTLSeconds *int    `yaml:"cache_ttl_seconds"`
		MaxFetchBytes   *int64  `yaml:"max_fetch_bytes"`
		TimeoutSeconds  *int    `yaml:"timeout_seconds"`
	} `yaml:"resolver"`

	Observability *struct {
		MetricsEnabled *bool `yaml:"metrics_enabled"`
		Tracing        *struct {
			Enabled     *bool    `yaml:"enabled"`
			Exporter    *string  `yaml:"exporter"`
			Endpoint    *string  `yaml:"endpoint"`
			SampleRate  *float64 `yaml:"sample_rate"`
			ServiceName *string  `yaml:"service_name"`
		} `yaml:"tracing"`
	} `yaml:"observability"`
}

// ResolveConfigPath returns $REPVERSE_CONFIG when set, otherwise ./repverse.yaml.
func ResolveConfigPath(lookup EnvLookup) string {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}
	if value, ok := lookup(configPathEnvVar); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultConfigFile
}

// LoadFileConfig loads the YAML config file with env interpolation applied.
func LoadFileConfig(opts ...Option) (FileConfig, string, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return loadFileConfig(options)
}

func loadFileConfig(options loadOptions) (FileConfig, string, error) {
	configPath := strings.TrimSpace(options.configPath)
	explicit := configPath != ""
	if !explicit {
		configPath = ResolveConfigPath(options.envLookup)
	}

	data, err := options.readFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return FileConfig{}, "", nil
		}
		return FileConfig{}, configPath, fmt.Errorf("read config file: %w", err)
	}

	// Interpolate before parsing so every scalar (including numbers) can use ${VAR}.
	expanded := os.Expand(string(data), func(key string) string {
		value, _ := options.envLookup(key)
		return value
	})
	if len(bytes.TrimSpace([]byte(expanded))) == 0 {
		return FileConfig{}, configPath, nil
	}

	var parsed FileConfig
	if err := yaml.Unmarshal([]byte(expanded), &parsed); err != nil {
		return FileConfig{}, configPath, fmt.Errorf("parse config file %s: %w", configPath, err)
	}
	return parsed, configPath, nil
}

func applyFile(cfg *RuntimeConfig, meta *Metadata, options loadOptions) error {
	file, path, err := loadFileConfig(options)
	if err != nil {
		return err
	}
	meta.path = path

	set := func(field string) { meta.sources[field] = SourceFile }

	setString(&cfg.Environment, file.Environment, "environment", set)
	setString(&cfg.LogLevel, file.LogLevel, "log_level", set)
	setString(&cfg.IDStrategy, file.IDStrategy, "id_strategy", set)

	if llm := file.LLM; llm != nil {
		setString(&cfg.LLM.Provider, llm.Provider, "llm.provider", set)
		setString(&cfg.LLM.Model, llm.Model, "llm.model", set)
		setString(&cfg.LLM.ImageModel, llm.ImageModel, "llm.image_model", set)
		setString(&cfg.LLM.APIKey, llm.APIKey, "llm.api_key", set)
		setString(&cfg.LLM.BaseURL, llm.BaseURL, "llm.base_url", set)
		setValue(&cfg.LLM.TimeoutSeconds, llm.TimeoutSeconds, "llm.timeout_seconds", set)
		setValue(&cfg.LLM.MaxRetries, llm.MaxRetries, "llm.max_retries", set)
		setValue(&cfg.LLM.RateLimitRPS, llm.RateLimitRPS, "llm.rate_limit_rps", set)
		setValue(&cfg.LLM.RateLimitBurst, llm.RateLimitBurst, "llm.rate_limit_burst", set)
		setValue(&cfg.LLM.CircuitFailureThreshold, llm.CircuitFailureThreshold, "llm.circuit_failure_threshold", set)
		setValue(&cfg.LLM.CircuitTimeoutSeconds, llm.CircuitTimeoutSeconds, "llm.circuit_timeout_seconds", set)
	}

	if eval := file.Evaluation; eval != nil {
		setValue(&cfg.Evaluation.ParallelAgents, eval.ParallelAgents, "evaluation.parallel_agents", set)
		setValue(&cfg.Evaluation.PassThreshold, eval.PassThreshold, "evaluation.pass_threshold", set)
		setValue(&cfg.Evaluation.VetoThreshold, eval.VetoThreshold, "evaluation.veto_threshold", set)
		setValue(&cfg.Evaluation.MaxRetries, eval.MaxRetries, "evaluation.max_retries", set)
		if len(eval.Policies) > 0 {
			cfg.Evaluation.Policies = append([]PolicyConfig(nil), eval.Policies...)
			set("evaluation.policies")
		}
	}

	if server := file.Server; server != nil {
		setString(&cfg.Server.Port, server.Port, "server.port", set)
		setValue(&cfg.Server.RequestTimeoutSeconds, server.RequestTimeoutSeconds, "server.request_timeout_seconds", set)
		if len(server.AllowedOrigins) > 0 {
			cfg.Server.AllowedOrigins = append([]string(nil), server.AllowedOrigins...)
			set("server.allowed_origins")
		}
	}

	if storage := file.Storage; storage != nil {
		setString(&cfg.Storage.DatabaseURL, storage.DatabaseURL, "storage.database_url", set)
	}

	if resolver := file.Resolver; resolver != nil {
		setString(&cfg.Resolver.IPFSAPIAddress, resolver.IPFSAPIAddress, "resolver.ipfs_api", set)
		setValue(&cfg.Resolver.CacheSize, resolver.CacheSize, "resolver.cache_size", set)
		setValue(&cfg.Resolver.CacheTTLSeconds, resolver.CacheTTLSeconds, "resolver.cache_ttl_seconds", set)
		setValue(&cfg.Resolver.MaxFetchBytes, resolver.MaxFetchBytes, "resolver.max_fetch_bytes", set)
		setValue(&cfg.Resolver.TimeoutSeconds, resolver.TimeoutSeconds, "resolver.timeout_seconds", set)
	}

	if obs := file.Observability; obs != nil {
		setValue(&cfg.Observability.MetricsEnabled, obs.MetricsEnabled, "observability.metrics_enabled", set)
		if tracing := obs.Tracing; tracing != nil {
			setValue(&cfg.Observability.Tracing.Enabled, tracing.Enabled, "observability.tracing.enabled", set)
			setString(&cfg.Observability.Tracing.Exporter, tracing.Exporter, "observability.tracing.exporter", set)
			setString(&cfg.Observability.Tracing.Endpoint, tracing.Endpoint, "observability.tracing.endpoint", set)
			setValue(&cfg.Observability.Tracing.SampleRate, tracing.SampleRate, "observability.tracing.sample_rate", set)
			setString(&cfg.Observability.Tracing.ServiceName, tracing.ServiceName, "observability.tracing.service_name", set)
		}
	}

	return nil
}

// setString ignores blank strings so an unset ${VAR} does not clobber a default.
func setString(dst *string, src *string, field string, mark func(string)) {
	if src == nil || strings.TrimSpace(*src) == "" {
		return
	}
	*dst = *src
	mark(field)
}

func setValue[T any](dst *T, src *T, field string, mark func(string)) {
	if src == nil {
		return
	}
	*dst = *src
	mark(field)
}
