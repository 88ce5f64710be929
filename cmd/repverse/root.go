package main

import (
	"io"
	"strings"

	"repverse/internal/shared/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagConfig   = "config"
	flagPort     = "port"
	flagLogLevel = "log-level"
	flagProvider = "provider"
)

// cli carries shared state across subcommands.
type cli struct {
	viper *viper.Viper
	stdin io.Reader
	env   config.EnvLookup
}

func newRootCommand(stdin io.Reader, env config.EnvLookup) *cobra.Command {
	if env == nil {
		env = config.DefaultEnvLookup
	}
	c := &cli{viper: viper.New(), stdin: stdin, env: env}
	c.viper.SetEnvPrefix("REPVERSE")
	c.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.viper.AutomaticEnv()

	root := &cobra.Command{
		Use:           "repverse",
		Short:         "Multi-agent quality and review scoring for freelance work",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String(flagConfig, "", "Path to repverse.yaml (default $REPVERSE_CONFIG or ./repverse.yaml)")
	flags.String(flagPort, "", "HTTP port for serve")
	flags.String(flagLogLevel, "", "Log level: debug, info, warn, error")
	flags.String(flagProvider, "", "Model provider: gemini or mock")
	for _, name := range []string{flagConfig, flagPort, flagLogLevel, flagProvider} {
		_ = c.viper.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		c.newServeCommand(),
		c.newCheckCommand(),
		c.newExtractCommand(),
		c.newImageCommand(),
		c.newConfigCommand(),
	)
	return root
}

// loadConfig merges flags and REPVERSE_* variables (via viper) over the
// file and environment layers.
func (c *cli) loadConfig() (config.RuntimeConfig, config.Metadata, error) {
	var overrides config.Overrides
	if v := strings.TrimSpace(c.viper.GetString(flagPort)); v != "" {
		overrides.Port = &v
	}
	if v := strings.TrimSpace(c.viper.GetString(flagLogLevel)); v != "" {
		overrides.LogLevel = &v
	}
	if v := strings.TrimSpace(c.viper.GetString(flagProvider)); v != "" {
		overrides.LLMProvider = &v
	}
	opts := []config.Option{
		config.WithEnv(c.env),
		config.WithOverrides(overrides),
		config.WithDotEnv(".env"),
	}
	if path := strings.TrimSpace(c.viper.GetString(flagConfig)); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	return config.Load(opts...)
}
