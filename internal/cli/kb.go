package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fieldsight/maintkit/internal/provision"
	"github.com/spf13/cobra"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the Bedrock knowledge base",
	}

	cmd.AddCommand(newKBCreateCmd())
	cmd.AddCommand(newKBStatusCmd())
	cmd.AddCommand(newKBSyncCmd())
	cmd.AddCommand(newKBMonitorCmd())
	cmd.AddCommand(newKBQueryCmd())
	return cmd
}

func newKBCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the knowledge base and its S3 data source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			kbCfg := cfg.Bedrock.KnowledgeBase
			if kbCfg.RoleARN == "" {
				return fmt.Errorf("no knowledge base role in the registry; run maintkit iam setup first")
			}
			if kbCfg.CollectionARN == "" {
				return fmt.Errorf("no collection in the registry; run maintkit vectorstore create first")
			}

			p := provision.New(clients, cfg, log)

			kbID, err := p.EnsureKnowledgeBase(ctx, kbCfg.RoleARN, kbCfg.CollectionARN)
			if err != nil {
				return err
			}
			dsID, err := p.EnsureDataSource(ctx, kbID)
			if err != nil {
				return err
			}

			fmt.Printf("Knowledge base: %s\n", kbID)
			fmt.Printf("Data source:    %s\n", dsID)
			return saveRegistry(cfg)
		},
	}
}

func newKBStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the knowledge base state and last ingestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			kbCfg := cfg.Bedrock.KnowledgeBase
			if kbCfg.ID == "" {
				return fmt.Errorf("no knowledge base in the registry; run maintkit kb create first")
			}

			p := provision.New(clients, cfg, log)

			status, err := p.KnowledgeBaseStatus(ctx, kbCfg.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Knowledge base %s: %s\n", kbCfg.ID, status)

			if kbCfg.DataSourceID != "" {
				latest, err := p.LatestIngestion(ctx, kbCfg.ID, kbCfg.DataSourceID)
				if err != nil {
					return err
				}
				if latest == nil {
					fmt.Println("No ingestion jobs yet; run maintkit kb sync.")
					return nil
				}
				printIngestion(latest)
			}
			return nil
		},
	}
}

func newKBSyncCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Start an ingestion job for the data source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			kbCfg := cfg.Bedrock.KnowledgeBase
			if kbCfg.ID == "" || kbCfg.DataSourceID == "" {
				return fmt.Errorf("knowledge base not fully provisioned; run maintkit kb create first")
			}

			p := provision.New(clients, cfg, log)

			jobID, err := p.StartIngestion(ctx, kbCfg.ID, kbCfg.DataSourceID, "manual sync from maintkit")
			if err != nil {
				return err
			}
			fmt.Printf("Ingestion job %s started.\n", jobID)

			if !wait {
				fmt.Println("Run maintkit kb monitor to follow it.")
				return nil
			}

			status, err := p.WaitForIngestion(ctx, kbCfg.ID, kbCfg.DataSourceID, jobID)
			if status != nil {
				printIngestion(status)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the ingestion job to finish")
	return cmd
}

func newKBMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Follow the most recent ingestion job until it finishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			kbCfg := cfg.Bedrock.KnowledgeBase
			if kbCfg.ID == "" || kbCfg.DataSourceID == "" {
				return fmt.Errorf("knowledge base not fully provisioned; run maintkit kb create first")
			}

			p := provision.New(clients, cfg, log)

			latest, err := p.LatestIngestion(ctx, kbCfg.ID, kbCfg.DataSourceID)
			if err != nil {
				return err
			}
			if latest == nil {
				fmt.Println("No ingestion jobs yet; run maintkit kb sync.")
				return nil
			}
			if latest.Done() {
				printIngestion(latest)
				return nil
			}

			fmt.Printf("Following job %s...\n", latest.JobID)
			status, err := p.WaitForIngestion(ctx, kbCfg.ID, kbCfg.DataSourceID, latest.JobID)
			if status != nil {
				printIngestion(status)
			}
			return err
		},
	}
}

func newKBQueryCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Run a vector search against the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			kbCfg := cfg.Bedrock.KnowledgeBase
			if kbCfg.ID == "" {
				return fmt.Errorf("no knowledge base in the registry; run maintkit kb create first")
			}

			p := provision.New(clients, cfg, log)

			hits, err := p.QueryKnowledgeBase(ctx, kbCfg.ID, strings.Join(args, " "), int32(topK))
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("No results.")
				return nil
			}

			for i, hit := range hits {
				fmt.Printf("%d. score=%.4f  %s\n", i+1, hit.Score, valOr(hit.Location, "(no location)"))
				fmt.Printf("   %s\n", trimContent(hit.Content, 240))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 3, "number of chunks to retrieve")
	return cmd
}

func printIngestion(status *provision.IngestionStatus) {
	fmt.Printf("Job %s: %s (scanned=%d indexed=%d failed=%d)\n",
		status.JobID, status.Status,
		status.DocumentsScanned, status.DocumentsIndexed, status.DocumentsFailed)
	for _, reason := range status.FailureReasons {
		fmt.Printf("  failure: %s\n", reason)
	}
}

// trimContent flattens whitespace and cuts the text for one-line display.
func trimContent(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
