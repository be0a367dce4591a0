package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fieldsight/maintkit/internal/provision"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage the DynamoDB session table",
	}

	cmd.AddCommand(newSessionsCreateCmd())
	cmd.AddCommand(newSessionsCleanupCmd())
	return cmd
}

func newSessionsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the session table with TTL enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			if err := p.EnsureSessionTable(ctx); err != nil {
				return err
			}

			fmt.Printf("Session table: %s\n", cfg.SessionTable)
			return nil
		},
	}
}

func newSessionsCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the session table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			if err := p.DeleteSessionTable(ctx); err != nil {
				return err
			}

			fmt.Printf("Session table %s deleted.\n", cfg.SessionTable)
			return nil
		},
	}
}
