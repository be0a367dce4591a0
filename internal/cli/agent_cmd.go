package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/provision"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage the Bedrock agent",
	}

	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentPrepareCmd())
	cmd.AddCommand(newAgentAliasCmd())
	cmd.AddCommand(newAgentStatusCmd())
	cmd.AddCommand(newAgentInvokeCmd())
	return cmd
}

func newAgentCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the agent and associate the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			if cfg.Bedrock.Agent.RoleARN == "" {
				return fmt.Errorf("no agent role in the registry; run maintkit iam setup first")
			}
			kbID := cfg.Bedrock.KnowledgeBase.ID
			if kbID == "" {
				return fmt.Errorf("no knowledge base in the registry; run maintkit kb create first")
			}

			p := provision.New(clients, cfg, log)

			id, err := p.EnsureAgent(ctx, cfg.Bedrock.Agent.RoleARN, kbID)
			if err != nil {
				return err
			}

			fmt.Printf("Agent: %s\n", id)
			fmt.Println("Run maintkit agent prepare, then maintkit agent alias.")
			return saveRegistry(cfg)
		},
	}
}

func newAgentPrepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Prepare the agent's DRAFT version and wait for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			agentID := cfg.Bedrock.Agent.ID
			if agentID == "" {
				return fmt.Errorf("no agent in the registry; run maintkit agent create first")
			}

			p := provision.New(clients, cfg, log)
			if err := p.PrepareAgent(ctx, agentID); err != nil {
				return err
			}

			fmt.Println("Agent prepared.")
			return nil
		},
	}
}

func newAgentAliasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alias",
		Short: "Create the production alias and wait for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			agentID := cfg.Bedrock.Agent.ID
			if agentID == "" {
				return fmt.Errorf("no agent in the registry; run maintkit agent create first")
			}

			p := provision.New(clients, cfg, log)

			aliasID, err := p.EnsureAlias(ctx, agentID)
			if err != nil {
				return err
			}

			fmt.Printf("Alias: %s\n", aliasID)
			return saveRegistry(cfg)
		},
	}
}

func newAgentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the agent's live state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			agentID := cfg.Bedrock.Agent.ID
			if agentID == "" {
				return fmt.Errorf("no agent in the registry; run maintkit agent create first")
			}

			p := provision.New(clients, cfg, log)

			info, err := p.AgentStatus(ctx, agentID)
			if err != nil {
				return err
			}

			fmt.Printf("Agent:    %s (%s)\n", info.ID, info.Name)
			fmt.Printf("Status:   %s\n", info.Status)
			if info.PreparedAt != "" {
				fmt.Printf("Prepared: %s\n", info.PreparedAt)
			}
			fmt.Printf("Alias:    %s\n", valOr(cfg.Bedrock.Agent.AliasID, "(none)"))

			kbs, err := p.AssociatedKnowledgeBases(ctx, agentID)
			if err != nil {
				return err
			}
			if len(kbs) > 0 {
				fmt.Printf("KBs:      %s\n", strings.Join(kbs, ", "))
			}
			return nil
		},
	}
}

func newAgentInvokeCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "invoke [question]",
		Short: "Send one question to the agent and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			agentCfg := cfg.Bedrock.Agent
			if agentCfg.ID == "" || agentCfg.AliasID == "" {
				return fmt.Errorf("agent not deployed; run maintkit agent create and maintkit agent alias first")
			}

			if session == "" {
				session = assistant.NewSessionID()
			}

			client := assistant.New(clients.AgentRuntime, agentCfg.ID, agentCfg.AliasID, log)

			start := time.Now()
			answer, err := client.Invoke(ctx, strings.Join(args, " "), session)
			if err != nil {
				return err
			}

			fmt.Println(answer)
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[session=%s elapsed=%s]\n",
				session, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "continue an existing session ID")
	return cmd
}
