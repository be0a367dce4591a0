package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fieldsight/maintkit/internal/probe"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check AWS credentials, model access, and service reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			results := probe.New(clients, cfg, log).Validate(ctx)
			for _, r := range results {
				mark := "ok"
				if !r.Passed {
					mark = "FAIL"
				}
				fmt.Printf("[%-4s] %-22s %s\n", mark, r.Name, r.Detail)
			}
			if !probe.AllPassed(results) {
				return fmt.Errorf("environment validation failed")
			}
			fmt.Println("\nAll checks passed.")
			return nil
		},
	}
}

func newDiagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Compare registry resource IDs against live AWS state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			diags := probe.New(clients, cfg, log).Diagnose(ctx)

			missing := 0
			for _, d := range diags {
				state := "live"
				switch {
				case d.Live:
				case d.ID == "":
					state = "unset"
				default:
					state = "MISSING"
					missing++
				}
				fmt.Printf("%-18s %-28s %-8s %s", d.Resource, valOr(d.ID, "-"), state, d.Status)
				if d.Notes != "" {
					fmt.Printf("  %s", d.Notes)
				}
				fmt.Println()
			}
			if missing > 0 {
				fmt.Printf("\n%d registry resource(s) not found live.\n", missing)
			}
			return nil
		},
	}
}
