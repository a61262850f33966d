package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/drishti/internal/config"
	"github.com/bryanwahyu/drishti/internal/logging"
)

// commandContext loads the config once for whichever subcommand runs.
type commandContext struct {
	configFlag *string
	logLevel   *string
	cfg        *config.Config
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil && *c.configFlag != "" {
		return *c.configFlag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath())
	if err != nil {
		return nil, err
	}
	if c.logLevel != nil && *c.logLevel != "" {
		cfg.Log.Level = *c.logLevel
	}
	// stdout is reserved for reports
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag, logLevel string
	ctx := &commandContext{configFlag: &configFlag, logLevel: &logLevel}

	rootCmd := &cobra.Command{
		Use:           "drishti",
		Short:         "Audit videos for hate-speech compliance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd == cmd.Root() {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $CONFIG_PATH or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newAuditCommand(ctx))
	rootCmd.AddCommand(newIndexDocsCommand(ctx))

	return rootCmd
}
