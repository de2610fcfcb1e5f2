// Package commands implements the Daybrief CLI commands using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/daybrief/pkg/daybrief/config"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "daybrief",
		Short: "Daybrief - Outlook mail and calendar assistant",
		Long: `Daybrief is a personal AI assistant for Outlook mail and calendar.
It answers questions over SMS, Telegram and Discord, creates calendar
events from chat, and pushes scheduled briefings and alerts.

Examples:
  daybrief serve
  daybrief chat "What's on my calendar today?"
  daybrief schedule show
  daybrief setup`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newScheduleCmd(),
		newSetupCmd(),
		newHealthCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// resolveConfig loads config from the --config flag or by auto-discovery.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath != "" {
		cfg, err := config.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	if found := config.FindConfigFile(); found != "" {
		cfg, err := config.LoadConfigFromFile(found)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", found, err)
		}
		return cfg, nil
	}

	// No config file is still a runnable state: env vars can carry
	// everything the daemon needs.
	return config.DefaultConfig(), nil
}

// buildLogger constructs the slog logger from config and the --verbose flag.
func buildLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}
