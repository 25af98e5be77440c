package cli

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg   config
		topK  int64
		query string
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Aliases:     []string{"k"},
			Usage:       "Number of results",
			Value:       model.DefaultTopK,
			Destination: &topK,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "One-shot similarity search against the index",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query = c.Args().First()
			if query == "" {
				return goerr.New("query argument is required")
			}

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

			embedding, err := gemini.Embedding(ctx, query)
			if err != nil {
				return err
			}

			docs, err := repo.SearchSimilarEntries(ctx, firestore.Vector32(embedding), int(topK))
			if err != nil {
				return err
			}

			out := c.Root().Writer
			if len(docs) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, doc := range docs {
				distance := "n/a"
				if doc.Distance != nil {
					distance = fmt.Sprintf("%.4f", *doc.Distance)
				}
				fmt.Fprintf(out, "%d. %s (%s) distance=%s\n", i+1, doc.Entry.Title, doc.Entry.Date, distance)
				fmt.Fprintf(out, "   %s\n", truncate(doc.Entry.Text, 160))
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
