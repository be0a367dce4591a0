package cli

import (
	"context"
	"fmt"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintkit",
		Short: "Provision and operate the Bedrock maintenance assistant",
		Long: "maintkit provisions an AWS Bedrock agent with a knowledge base over S3 fault-report data,\n" +
			"deploys the Lambda handlers that front it, and provides local tools for querying the result.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "path to the resource registry")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newDiagnoseCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDataCmd())
	cmd.AddCommand(newIAMCmd())
	cmd.AddCommand(newVectorStoreCmd())
	cmd.AddCommand(newKBCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newLambdaCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newSmokeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newConsoleCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// dialAWS loads the registry named by --config and builds AWS clients
// for its region.
func dialAWS(ctx context.Context) (*awsx.Clients, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	clients, err := awsx.New(ctx, cfg.Region)
	if err != nil {
		return nil, nil, err
	}
	return clients, &cfg, nil
}

// saveRegistry writes resource IDs back to the registry file so later
// commands and redeploys can find them.
func saveRegistry(cfg *config.Config) error {
	if err := config.Save(cfgFile, *cfg); err != nil {
		return fmt.Errorf("saving registry: %w", err)
	}
	log.Info().Str("path", cfgFile).Msg("registry updated")
	return nil
}

func valOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
