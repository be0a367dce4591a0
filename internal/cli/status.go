package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the registry and deployment state at a glance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("maintkit %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Registry: %s\n", cfgFile)
			fmt.Printf("Home:     %s\n", paths.Base)
			fmt.Println()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				fmt.Printf("Registry: error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Region:   %s\n", cfg.Region)
			fmt.Printf("Project:  %s\n", cfg.ProjectName)

			agent := cfg.Bedrock.Agent
			fmt.Printf("Agent:    id=%s alias=%s model=%s\n",
				valOr(agent.ID, "-"), valOr(agent.AliasID, "-"), agent.FoundationModel)

			kb := cfg.Bedrock.KnowledgeBase
			fmt.Printf("KB:       id=%s data-source=%s embeddings=%s\n",
				valOr(kb.ID, "-"), valOr(kb.DataSourceID, "-"), kb.FoundationModel)
			fmt.Printf("Vector:   %s\n", valOr(kb.CollectionARN, "(not created)"))

			bucket := cfg.S3.DataBucket
			fmt.Printf("Bucket:   %s source=%s kb=%s\n",
				bucket.Name, bucket.DataStructure.SourcePrefix, bucket.DataStructure.BasePrefix)

			fmt.Printf("Lambda:   role=%s\n", valOr(cfg.IAM.LambdaRoleARN, "(not created)"))
			for _, key := range functionKeys {
				fn, ok := cfg.Function(key)
				if !ok {
					continue
				}
				fmt.Printf("  %-16s %-34s %s\n", key, fn.FunctionName, valOr(fn.URL, "(no url)"))
			}

			fmt.Printf("Sessions: %s\n", cfg.SessionTable)
			fmt.Printf("Console:  port=%d bind=%s\n", cfg.Console.Port, cfg.Console.Bind)

			// Quick reachability check; status stays usable offline.
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if clients, err := awsx.New(ctx, cfg.Region); err == nil {
				if account, err := clients.AccountID(ctx); err == nil {
					fmt.Printf("AWS:      account %s reachable\n", account)
				} else {
					fmt.Printf("AWS:      unreachable (%v)\n", err)
				}
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}
