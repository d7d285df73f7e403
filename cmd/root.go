package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"bookvocab/internal/config"
	"bookvocab/internal/logger"
)

var log *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "bookvocab",
	Short: "Account and session service for the book vocabulary app",
	Long: `Serves registration, login, token refresh and logout over HTTP,
and offers operator commands for inspecting and revoking user sessions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		log = logger.New(config.AppEnv.Env, config.AppEnv.LogLevel)
		slog.SetDefault(log)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
