package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/console"
	"github.com/fieldsight/maintkit/internal/store"
	"github.com/spf13/cobra"
)

func newConsoleCmd() *cobra.Command {
	var (
		port    int
		bind    string
		direct  bool
		urlFlag string
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Serve the local web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Console.Port = port
			}
			if bind != "" {
				cfg.Console.Bind = bind
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ask, err := buildAsker(ctx, &cfg, direct, urlFlag)
			if err != nil {
				return err
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			db, err := store.Open(paths.Transcript, log)
			if err != nil {
				return fmt.Errorf("opening transcript store: %w", err)
			}
			defer db.Close()

			srv := console.New(cfg.Console, log,
				console.WithAsker(ask),
				console.WithTranscripts(store.NewTranscriptStore(db)),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override console port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&direct, "direct", false, "invoke the Bedrock agent directly instead of the deployed function URL")
	cmd.Flags().StringVar(&urlFlag, "url", "", "override the query handler URL")
	return cmd
}
