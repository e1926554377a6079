// Package main is the entry point for the meshpreview command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Faultbox/meshpreview/internal/config"
	"github.com/Faultbox/meshpreview/internal/logger"
)

// cfg is loaded once flags are parsed, before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "meshpreview",
	Short:         "Preview 3D models: host embedded viewers, render stills, inspect dimensions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		logger.Sugar.Debugf("config: %+v", redacted(cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().AddFlagSet(config.Flags)
}

// redacted hides credentials from debug output.
func redacted(c *config.Config) config.Config {
	out := *c
	if out.Sources.S3.SecretKey != "" {
		out.Sources.S3.SecretKey = "***"
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
