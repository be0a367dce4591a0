package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fieldsight/maintkit/internal/assistant"
	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/console"
	"github.com/fieldsight/maintkit/internal/store"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		direct  bool
		session string
		resume  bool
		urlFlag string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the deployed assistant from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
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
			transcripts := store.NewTranscriptStore(db)

			if resume && session == "" {
				recent := transcripts.Recent(1)
				if len(recent) == 0 {
					return fmt.Errorf("no previous conversations to resume")
				}
				session = recent[0].SessionID
			}
			if session == "" {
				session = assistant.NewSessionID()
			}

			fmt.Printf("Connected to %s (session %s)\n", ask.Target(), shortSession(session))
			fmt.Println(`Type a question, "/new" for a fresh session, or "/quit" to leave.`)
			replayTail(transcripts, session, 6)

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 64*1024), 64*1024)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/new":
					session = assistant.NewSessionID()
					fmt.Printf("Started session %s\n", shortSession(session))
					continue
				case "/history":
					printHistory(transcripts, session)
					continue
				}

				if ctx.Err() != nil {
					return nil
				}

				start := time.Now()
				answer, err := ask.Ask(ctx, line, session)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						fmt.Println()
						return nil
					}
					log.Error().Err(err).Msg("query failed")
					fmt.Printf("! %v\n", err)
					continue
				}

				fmt.Println(answer)
				fmt.Printf("  [%s]\n", elapsed.Round(time.Millisecond))

				conv := transcripts.GetOrCreate(session, "chat")
				transcripts.Append(conv.ID, store.Message{Role: "user", Content: line, Timestamp: start})
				transcripts.Append(conv.ID, store.Message{Role: "assistant", Content: answer, Timestamp: time.Now(), Elapsed: elapsed})
			}
		},
	}

	cmd.Flags().BoolVar(&direct, "direct", false, "invoke the Bedrock agent directly instead of the deployed function URL")
	cmd.Flags().StringVar(&session, "session", "", "continue an existing session ID")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue the most recent conversation")
	cmd.Flags().StringVar(&urlFlag, "url", "", "override the query handler URL")
	return cmd
}

// buildAsker picks the query path: the deployed function URL by
// default, or the Bedrock agent runtime directly with --direct.
func buildAsker(ctx context.Context, cfg *config.Config, direct bool, urlOverride string) (console.Asker, error) {
	if direct {
		agentCfg := cfg.Bedrock.Agent
		if agentCfg.ID == "" || agentCfg.AliasID == "" {
			return nil, fmt.Errorf("agent not deployed; run maintkit agent create and maintkit agent alias first")
		}
		clients, err := awsx.New(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return console.ViaAgent(assistant.New(clients.AgentRuntime, agentCfg.ID, agentCfg.AliasID, log)), nil
	}

	url := urlOverride
	if url == "" {
		if fn, ok := cfg.Function(config.FnQueryHandler); ok {
			url = fn.URL
		}
	}
	if url == "" {
		return nil, fmt.Errorf("no query handler URL in the registry; run maintkit lambda deploy or pass --direct")
	}
	return console.ViaEndpoint(assistant.NewEndpoint(url)), nil
}

// replayTail prints the last few turns of a resumed conversation.
func replayTail(transcripts *store.TranscriptStore, sessionID string, n int) {
	conv := transcripts.FindBySession(sessionID)
	if conv == nil {
		return
	}
	msgs := transcripts.History(conv.ID)
	if len(msgs) > n {
		fmt.Printf("  ... %d earlier message(s)\n", len(msgs)-n)
		msgs = msgs[len(msgs)-n:]
	}
	for _, m := range msgs {
		if m.Role == "user" {
			fmt.Printf("> %s\n", m.Content)
		} else {
			fmt.Println(m.Content)
		}
	}
}

func printHistory(transcripts *store.TranscriptStore, sessionID string) {
	conv := transcripts.FindBySession(sessionID)
	if conv == nil {
		fmt.Println("No transcript for this session yet.")
		return
	}
	for _, m := range transcripts.History(conv.ID) {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
	}
}

func shortSession(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
