package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fieldsight/maintkit/internal/provision"
	"github.com/spf13/cobra"
)

func newVectorStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectorstore",
		Short: "Manage the OpenSearch Serverless collection",
	}

	cmd.AddCommand(newVectorStoreCreateCmd())
	cmd.AddCommand(newVectorStoreStatusCmd())
	cmd.AddCommand(newVectorStoreCleanupCmd())
	return cmd
}

func newVectorStoreCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the vector collection and its security policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			arn, err := p.EnsureVectorStore(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Collection: %s\n", arn)
			return saveRegistry(cfg)
		},
	}
}

func newVectorStoreStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the vector collection state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			info, err := p.VectorStoreStatus(ctx)
			if err != nil {
				return err
			}
			if info == nil {
				fmt.Println("Collection not found; run maintkit vectorstore create first.")
				return nil
			}

			fmt.Printf("Name:   %s\n", info.Name)
			fmt.Printf("ID:     %s\n", info.ID)
			fmt.Printf("ARN:    %s\n", info.ARN)
			fmt.Printf("Status: %s\n", info.Status)
			return nil
		},
	}
}

func newVectorStoreCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the vector collection and its policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			if err := p.CleanupVectorStore(ctx); err != nil {
				return err
			}

			cfg.Bedrock.KnowledgeBase.CollectionARN = ""

			fmt.Println("Vector store cleanup complete.")
			return saveRegistry(cfg)
		},
	}
}
