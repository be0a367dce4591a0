package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/probe"
	"github.com/spf13/cobra"
)

func newSmokeCmd() *cobra.Command {
	var (
		suitePath string
		urlFlag   string
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the smoke suite against the deployed query handler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			url := urlFlag
			if url == "" {
				if fn, ok := cfg.Function(config.FnQueryHandler); ok {
					url = fn.URL
				}
			}
			if url == "" {
				return fmt.Errorf("no query handler URL in the registry; run maintkit lambda deploy or pass --url")
			}

			suite := probe.DefaultSuite()
			if suitePath != "" {
				suite, err = probe.LoadSuite(suitePath)
				if err != nil {
					return err
				}
			}

			results := probe.New(clients, cfg, log).Smoke(ctx, assistant.NewEndpoint(url), suite)
			for _, r := range results {
				mark := "ok"
				if !r.Passed {
					mark = "FAIL"
				}
				fmt.Printf("[%-4s] %-28s %8s  %s\n",
					mark, r.Case.Name, r.Elapsed.Round(time.Millisecond), r.Detail)
			}
			if !probe.SmokePassed(results) {
				return fmt.Errorf("smoke suite failed")
			}
			fmt.Printf("\n%d case(s) passed.\n", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "YAML file with smoke cases (default: built-in suite)")
	cmd.Flags().StringVar(&urlFlag, "url", "", "override the query handler URL")
	return cmd
}
