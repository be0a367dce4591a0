package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fieldsight/maintkit/internal/provision"
	"github.com/spf13/cobra"
)

func newIAMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iam",
		Short: "Manage the service roles",
	}

	cmd.AddCommand(newIAMSetupCmd())
	cmd.AddCommand(newIAMCleanupCmd())
	return cmd
}

func newIAMSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the agent, knowledge base, and Lambda execution roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			agentRole, err := p.EnsureAgentRole(ctx)
			if err != nil {
				return err
			}
			kbRole, err := p.EnsureKnowledgeBaseRole(ctx)
			if err != nil {
				return err
			}
			lambdaRole, err := p.EnsureLambdaRole(ctx)
			if err != nil {
				return err
			}

			cfg.Bedrock.Agent.RoleARN = agentRole
			cfg.Bedrock.KnowledgeBase.RoleARN = kbRole
			cfg.IAM.LambdaRoleARN = lambdaRole

			fmt.Printf("Agent role:  %s\n", agentRole)
			fmt.Printf("KB role:     %s\n", kbRole)
			fmt.Printf("Lambda role: %s\n", lambdaRole)

			return saveRegistry(cfg)
		},
	}
}

func newIAMCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the service roles and their policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			if err := p.DeleteRoles(ctx); err != nil {
				return err
			}

			cfg.Bedrock.Agent.RoleARN = ""
			cfg.Bedrock.KnowledgeBase.RoleARN = ""
			cfg.IAM.LambdaRoleARN = ""

			fmt.Println("Service roles deleted.")
			return saveRegistry(cfg)
		},
	}
}
