package main

import (
	"fmt"
	"sort"
	"strings"

	"repverse/internal/shared/config"

	"github.com/spf13/cobra"
)

func (c *cli) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, meta, err := c.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := meta.Path()
			if path == "" {
				path = "(none)"
			}
			fmt.Fprintf(out, "%s %s\n", bold("config file:"), path)

			rows := [][2]string{
				{"environment", cfg.Environment},
				{"log_level", cfg.LogLevel},
				{"llm.provider", cfg.LLM.Provider},
				{"llm.model", cfg.LLM.Model},
				{"llm.image_model", cfg.LLM.ImageModel},
				{"llm.api_key", maskSecret(cfg.LLM.APIKey)},
				{"evaluation.parallel_agents", fmt.Sprint(cfg.Evaluation.ParallelAgents)},
				{"evaluation.pass_threshold", fmt.Sprint(cfg.Evaluation.PassThreshold)},
				{"evaluation.veto_threshold", fmt.Sprint(cfg.Evaluation.VetoThreshold)},
				{"evaluation.max_retries", fmt.Sprint(cfg.Evaluation.MaxRetries)},
				{"server.port", cfg.Server.Port},
				{"storage.database_url", maskSecret(cfg.Storage.DatabaseURL)},
				{"resolver.ipfs_api", cfg.Resolver.IPFSAPIAddress},
				{"observability.metrics_enabled", fmt.Sprint(cfg.Observability.MetricsEnabled)},
				{"observability.tracing.enabled", fmt.Sprint(cfg.Observability.Tracing.Enabled)},
			}
			width := 0
			for _, row := range rows {
				width = max(width, len(row[0]))
			}
			for _, row := range rows {
				fmt.Fprintf(out, "  %-*s  %s  %s\n", width, row[0], row[1], gray("["+string(meta.Source(row[0]))+"]"))
			}

			var overridden []string
			for field, source := range meta.Sources() {
				if source != config.SourceDefault {
					overridden = append(overridden, field)
				}
			}
			sort.Strings(overridden)
			if len(overridden) > 0 {
				fmt.Fprintf(out, "%s %s\n", bold("non-default:"), strings.Join(overridden, ", "))
			}
			return nil
		},
	}
}

func maskSecret(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "…" + secret[len(secret)-4:]
}
