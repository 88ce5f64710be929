package main

import (
	"repverse/internal/delivery/server/bootstrap"
	"repverse/internal/shared/logging"

	"github.com/spf13/cobra"
)

func (c *cli) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, meta, err := c.loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewComponentLogger("Main")
			logger.Info("config loaded from %q (provider=%s source=%s, port=%s)",
				meta.Path(), cfg.LLM.Provider, meta.Source("llm.provider"), cfg.Server.Port)
			printStatus(cmd.OutOrStdout(), "repverse listening on :%s (provider %s)", cfg.Server.Port, cfg.LLM.Provider)
			return bootstrap.RunServer(cmd.Context(), cfg, logger)
		},
	}
}
