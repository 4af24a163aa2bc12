package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/conductor/internal/daemon"
	"github.com/zero-day-ai/conductor/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Conductor daemon",
	Long: `Run the daemon: HTTP API, workflow engine, checkpoint store and
the single-flight lock. Interrupted workflows found in the checkpoint
store are resumed on startup.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging, os.Stderr)

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(cmd.Context(), cfg.Tracing)
		if err != nil {
			logger.Warn("tracing init failed", "error", err)
		} else {
			defer func() { _ = shutdown(cmd.Context()) }()
		}
	}

	d, err := daemon.Build(cfg, logger)
	if err != nil {
		return err
	}

	color.Green("conductor daemon listening on %s", cfg.Daemon.ListenAddress)
	return d.Run(cmd.Context())
}
