package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/provision"
	"github.com/spf13/cobra"
)

// functionKeys orders deploys so the user-facing handler lands first.
var functionKeys = []string{
	config.FnQueryHandler,
	config.FnDataSync,
	config.FnHealthCheck,
	config.FnSessionManager,
}

func newLambdaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Deploy and operate the Lambda functions",
	}

	cmd.AddCommand(newLambdaDeployCmd())
	cmd.AddCommand(newLambdaURLCmd())
	cmd.AddCommand(newLambdaInvokeCmd())
	cmd.AddCommand(newLambdaLogsCmd())
	return cmd
}

func newLambdaDeployCmd() *cobra.Command {
	var (
		binDir    string
		only      string
		skipProbe bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the handler binaries, session table, and function URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			roleARN := cfg.IAM.LambdaRoleARN
			if roleARN == "" {
				roleARN, err = p.EnsureLambdaRole(ctx)
				if err != nil {
					return err
				}
				cfg.IAM.LambdaRoleARN = roleARN
			}

			if err := p.EnsureSessionTable(ctx); err != nil {
				return err
			}

			keys := functionKeys
			if only != "" {
				if _, ok := cfg.Function(only); !ok {
					return fmt.Errorf("unknown function %q (have: %s)", only, strings.Join(functionKeys, ", "))
				}
				keys = []string{only}
			}

			// Resource IDs ride into the functions as environment variables.
			cfg.PropagateResourceIDs()

			for _, key := range keys {
				binPath := filepath.Join(binDir, binaryName(key))
				zipData, err := provision.PackageBinary(binPath)
				if err != nil {
					return fmt.Errorf("packaging %s (build the Lambda binaries into %s first): %w", key, binDir, err)
				}
				arn, err := p.DeployFunction(ctx, key, zipData, roleARN)
				if err != nil {
					return err
				}
				fmt.Printf("Deployed %-16s %s\n", key, arn)
			}

			for _, key := range keys {
				fn, _ := cfg.Function(key)
				if fn.FunctionURL == nil {
					continue
				}
				url, err := p.EnsureFunctionURL(ctx, key)
				if err != nil {
					return err
				}
				fmt.Printf("URL      %-16s %s\n", key, url)
			}

			if err := saveRegistry(cfg); err != nil {
				return err
			}

			if skipProbe {
				return nil
			}
			fn, _ := cfg.Function(config.FnQueryHandler)
			if fn.URL == "" {
				return nil
			}
			fmt.Println("Probing the query handler...")
			resp, err := assistant.NewEndpoint(fn.URL).Ask(ctx, "What is the current equipment status?", "")
			if err != nil {
				return fmt.Errorf("post-deploy probe failed: %w", err)
			}
			if resp.Response == "" {
				return fmt.Errorf("post-deploy probe returned an empty response")
			}
			fmt.Printf("Probe OK: %s\n", trimContent(resp.Response, 120))
			return nil
		},
	}

	cmd.Flags().StringVar(&binDir, "bin-dir", "bin", "directory holding the built handler binaries")
	cmd.Flags().StringVar(&only, "only", "", "deploy a single function key")
	cmd.Flags().BoolVar(&skipProbe, "skip-probe", false, "skip the post-deploy query probe")
	return cmd
}

func newLambdaURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url [function]",
		Short: "Create or fetch a function URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			key := config.FnQueryHandler
			if len(args) > 0 {
				key = args[0]
			}

			url, err := p.EnsureFunctionURL(ctx, key)
			if err != nil {
				return err
			}

			fmt.Println(url)
			return saveRegistry(cfg)
		},
	}
}

func newLambdaInvokeCmd() *cobra.Command {
	var (
		query       string
		payloadFile string
	)

	cmd := &cobra.Command{
		Use:   "invoke [function]",
		Short: "Invoke a function directly through the Lambda API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			key := config.FnQueryHandler
			if len(args) > 0 {
				key = args[0]
			}

			var payload []byte
			if payloadFile != "" {
				payload, err = os.ReadFile(payloadFile)
				if err != nil {
					return err
				}
			} else {
				payload, err = urlEventPayload(query)
				if err != nil {
					return err
				}
			}

			result, err := p.InvokeFunction(ctx, key, payload)
			if err != nil {
				return err
			}

			fmt.Printf("Status: %d\n", result.StatusCode)
			if result.FunctionError != "" {
				fmt.Printf("Function error: %s\n", result.FunctionError)
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, result.Payload, "", "  "); err == nil {
				fmt.Println(pretty.String())
			} else {
				fmt.Println(string(result.Payload))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "What is the current equipment status?", "question for the default query payload")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "file holding a raw invocation event")
	return cmd
}

// urlEventPayload wraps a query in the function URL event shape the
// handlers parse, so direct invokes exercise the same path.
func urlEventPayload(query string) ([]byte, error) {
	body, err := json.Marshal(assistant.QueryRequest{Query: query})
	if err != nil {
		return nil, err
	}
	event := events.LambdaFunctionURLRequest{
		Version: "2.0",
		Body:    string(body),
		Headers: map[string]string{"content-type": "application/json"},
		RequestContext: events.LambdaFunctionURLRequestContext{
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{
				Method: "POST",
			},
		},
	}
	return json.Marshal(event)
}

func newLambdaLogsCmd() *cobra.Command {
	var (
		since  time.Duration
		limit  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "logs [function]",
		Short: "Print recent CloudWatch logs for a function",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}
			p := provision.New(clients, cfg, log)

			key := config.FnQueryHandler
			if len(args) > 0 {
				key = args[0]
			}

			last := time.Now().Add(-since)
			lines, err := p.FunctionLogs(ctx, key, last, int32(limit))
			if err != nil {
				return err
			}
			for _, line := range lines {
				printLogLine(line)
				last = line.Timestamp
			}

			if !follow {
				if len(lines) == 0 {
					fmt.Println("No log events in the window.")
				}
				return nil
			}

			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}

				more, err := p.FunctionLogs(ctx, key, last.Add(time.Millisecond), int32(limit))
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				for _, line := range more {
					printLogLine(line)
					last = line.Timestamp
				}
			}
		},
	}

	cmd.Flags().DurationVar(&since, "since", 15*time.Minute, "how far back to fetch")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events per fetch")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new events")
	return cmd
}

func printLogLine(line provision.LogLine) {
	fmt.Printf("%s  %s\n", line.Timestamp.Format(time.RFC3339), strings.TrimRight(line.Message, "\n"))
}

// binaryName maps a registry function key to its built binary name.
func binaryName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
