package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bookvocab/internal/config"
)

var sessionsEmail string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and revoke user sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print how many sessions a user has",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			n, err := a.auth.SessionCount(ctx, sessionsEmail)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s has %d active session(s)\n", sessionsEmail, n)
			return nil
		})
	},
}

var sessionsRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Sign a user out of every device",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.auth.RevokeAll(ctx, sessionsEmail); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked all sessions of %s\n", sessionsEmail)
			return nil
		})
	},
}

func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	if sessionsEmail == "" {
		return errors.New("--email is required")
	}
	if config.AppEnv.StoreDriver == config.DriverMemory {
		return errors.New("sessions commands need a persistent store, set STORE_DRIVER=mongo")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx, config.AppEnv)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()
	return fn(ctx, a)
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsRevokeCmd)
	sessionsCmd.PersistentFlags().StringVar(&sessionsEmail, "email", "", "Email of the user")
}
