package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type envBinding struct {
	field string
	keys  []string
	apply func(cfg *RuntimeConfig, raw string) error
}

var envBindings = []envBinding{
	{"environment", []string{"REPVERSE_ENV"}, func(c *RuntimeConfig, v string) error { c.Environment = v; return nil }},
	{"log_level", []string{"REPVERSE_LOG_LEVEL"}, func(c *RuntimeConfig, v string) error { c.LogLevel = v; return nil }},
	{"llm.provider", []string{"REPVERSE_LLM_PROVIDER"}, func(c *RuntimeConfig, v string) error { c.LLM.Provider = v; return nil }},
	{"llm.model", []string{"REPVERSE_LLM_MODEL"}, func(c *RuntimeConfig, v string) error { c.LLM.Model = v; return nil }},
	{"llm.image_model", []string{"REPVERSE_LLM_IMAGE_MODEL"}, func(c *RuntimeConfig, v string) error { c.LLM.ImageModel = v; return nil }},
	{"llm.api_key", []string{"REPVERSE_LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}, func(c *RuntimeConfig, v string) error { c.LLM.APIKey = v; return nil }},
	{"llm.base_url", []string{"REPVERSE_LLM_BASE_URL"}, func(c *RuntimeConfig, v string) error { c.LLM.BaseURL = v; return nil }},
	{"llm.rate_limit_rps", []string{"REPVERSE_LLM_RATE_LIMIT_RPS"}, func(c *RuntimeConfig, v string) error {
		return parseFloat(&c.LLM.RateLimitRPS, v)
	}},
	{"evaluation.parallel_agents", []string{"REPVERSE_PARALLEL_AGENTS"}, func(c *RuntimeConfig, v string) error {
		return parseBool(&c.Evaluation.ParallelAgents, v)
	}},
	{"server.port", []string{"REPVERSE_PORT", "PORT"}, func(c *RuntimeConfig, v string) error { c.Server.Port = v; return nil }},
	{"server.allowed_origins", []string{"REPVERSE_ALLOWED_ORIGINS"}, func(c *RuntimeConfig, v string) error {
		c.Server.AllowedOrigins = strings.Split(v, ",")
		return nil
	}},
	{"storage.database_url", []string{"REPVERSE_DATABASE_URL", "DATABASE_URL"}, func(c *RuntimeConfig, v string) error {
		c.Storage.DatabaseURL = v
		return nil
	}},
	{"resolver.ipfs_api", []string{"REPVERSE_IPFS_API"}, func(c *RuntimeConfig, v string) error { c.Resolver.IPFSAPIAddress = v; return nil }},
	{"observability.metrics_enabled", []string{"REPVERSE_METRICS_ENABLED"}, func(c *RuntimeConfig, v string) error {
		return parseBool(&c.Observability.MetricsEnabled, v)
	}},
	{"observability.tracing.enabled", []string{"REPVERSE_TRACING_ENABLED"}, func(c *RuntimeConfig, v string) error {
		return parseBool(&c.Observability.Tracing.Enabled, v)
	}},
	{"observability.tracing.exporter", []string{"REPVERSE_TRACING_EXPORTER"}, func(c *RuntimeConfig, v string) error {
		c.Observability.Tracing.Exporter = v
		return nil
	}},
	{"observability.tracing.endpoint", []string{"REPVERSE_TRACING_ENDPOINT"}, func(c *RuntimeConfig, v string) error {
		c.Observability.Tracing.Endpoint = v
		return nil
	}},
}

func applyEnv(cfg *RuntimeConfig, meta *Metadata, lookup EnvLookup) error {
	for _, binding := range envBindings {
		for _, key := range binding.keys {
			raw, ok := lookup(key)
			if !ok || strings.TrimSpace(raw) == "" {
				continue
			}
			if err := binding.apply(cfg, strings.TrimSpace(raw)); err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			meta.sources[binding.field] = SourceEnv
			break
		}
	}
	return nil
}

// withDotEnvFallback reads the given .env files without touching the process
// environment; real env vars still win.
func withDotEnvFallback(base EnvLookup, paths []string) (EnvLookup, error) {
	values := map[string]string{}
	for _, path := range paths {
		parsed, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range parsed {
			if _, exists := values[k]; !exists {
				values[k] = v
			}
		}
	}
	return func(key string) (string, bool) {
		if value, ok := base(key); ok {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}, nil
}

func parseBool(dst *bool, raw string) error {
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func parseFloat(dst *float64, raw string) error {
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}
