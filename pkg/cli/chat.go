package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/usecase/agent"
	"github.com/sotaro-f/kioku/pkg/usecase/thread"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg      config
		provider string
		modelID  string
		threadID string
		topK     int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "Chat model provider (gemini, anthropic)",
			Value:       "gemini",
			Sources:     cli.EnvVars("KIOKU_PROVIDER"),
			Destination: &provider,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Chat model name (provider default when empty)",
			Sources:     cli.EnvVars("KIOKU_MODEL"),
			Destination: &modelID,
		},
		&cli.StringFlag{
			Name:        "thread-id",
			Usage:       "Continue an existing thread instead of starting fresh",
			Destination: &threadID,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Results per retrieval call",
			Value:       model.DefaultTopK,
			Destination: &topK,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat with the journal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stderr)
			logging.SetDefault(logger)
			ctx = logging.With(ctx, logger)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			flow, err := agent.New(repo, gemini, cfg.newChatModels(gemini))
			if err != nil {
				return err
			}
			threads := thread.New(repo)

			session, err := resolveThread(ctx, threads, threadID)
			if err != nil {
				return err
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			out := c.Root().Writer
			fmt.Fprintf(out, "Chatting in thread %s. Type 'exit' to quit.\n", session.ID)

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				query := strings.TrimSpace(line)
				if query == "" {
					continue
				}
				if query == "exit" {
					break
				}

				resp, err := runTurn(ctx, flow, out, &model.ChatRequest{
					Query:    query,
					TopK:     int(topK),
					Provider: provider,
					Model:    modelID,
					ThreadID: session.ID,
				})
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}

				fmt.Fprintf(out, "\n%s\n\n", resp.Response)

				if err := threads.RecordExchange(ctx, session.ID, query, resp.Response); err != nil {
					logger.Warn("failed to persist exchange", "error", err)
				}
			}

			fmt.Fprintf(out, "\nBye.\n")
			return nil
		},
	}
}

// runTurn executes one agentic turn with a spinner, printing a trace line as
// each search iteration completes.
func runTurn(ctx context.Context, flow *agent.Flow, out io.Writer, req *model.ChatRequest) (*model.ChatResponse, error) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = " searching journal..."
	sp.Start()
	defer sp.Stop()

	hook := agent.WithIterationHook(func(it model.SearchIteration) {
		sp.Stop()
		fmt.Fprintf(out, "  [%d] %s", it.Iteration, it.Tool)
		if it.Query != "" {
			fmt.Fprintf(out, " %q", it.Query)
		}
		fmt.Fprintf(out, " -> %d results, %d new\n", it.ResultsCount, it.NewEntriesAdded)
		sp.Start()
	})

	return flow.Run(ctx, req, hook)
}

func resolveThread(ctx context.Context, threads *thread.UseCase, threadID string) (*model.Thread, error) {
	if threadID == "" {
		return threads.Create(ctx, "", nil)
	}

	session, _, err := threads.Get(ctx, model.ThreadID(threadID))
	if err != nil {
		return nil, err
	}
	return session, nil
}
