package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/conductor/internal/config"
)

var (
	flagConfigFile string
	flagHomeDir    string
	flagAddr       string
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Conductor - resumable workflow orchestration engine",
	Long: `Conductor turns a single request into a classified, planned and
checkpointed workflow. The daemon owns execution; this CLI submits
requests, answers approval gates and inspects workflow state.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// daemonAddress resolves the daemon base URL from the --addr flag or the
// config file.
func daemonAddress() string {
	if flagAddr != "" {
		return "http://" + flagAddr
	}
	cfg, err := loadConfig()
	if err != nil {
		return "http://" + config.DefaultConfig().Daemon.ListenAddress
	}
	return "http://" + cfg.Daemon.ListenAddress
}

func loadConfig() (*config.Config, error) {
	path := flagConfigFile
	if path == "" {
		homeDir := flagHomeDir
		if homeDir == "" {
			homeDir = os.Getenv("CONDUCTOR_HOME")
		}
		if homeDir == "" {
			homeDir = config.DefaultHomeDir()
		}
		path = config.DefaultConfigPath(homeDir)
	}

	loader := config.NewLoader(config.NewValidator())
	return loader.LoadWithDefaults(path)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagHomeDir, "home", "", "Conductor home directory")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "Daemon address (host:port)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(versionCmd)
}
