package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sotaro-f/kioku/pkg/loader"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg                 config
		notesDir            string
		evergreenDir        string
		embeddingsPath      string
		evergreenEmbeddings string
		embedMissing        bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "notes-dir",
			Usage:       "Directory of daily journal markdown",
			Sources:     cli.EnvVars("KIOKU_NOTES_DIR"),
			Destination: &notesDir,
		},
		&cli.StringFlag{
			Name:        "evergreen-dir",
			Usage:       "Directory of evergreen notes",
			Sources:     cli.EnvVars("KIOKU_EVERGREEN_DIR"),
			Destination: &evergreenDir,
		},
		&cli.StringFlag{
			Name:        "embeddings",
			Usage:       "JSONL embeddings file for daily entries",
			Sources:     cli.EnvVars("KIOKU_EMBEDDINGS_PATH"),
			Destination: &embeddingsPath,
		},
		&cli.StringFlag{
			Name:        "evergreen-embeddings",
			Usage:       "JSONL embeddings file for evergreen notes",
			Sources:     cli.EnvVars("KIOKU_EVERGREEN_EMBEDDINGS_PATH"),
			Destination: &evergreenEmbeddings,
		},
		&cli.BoolFlag{
			Name:        "embed-missing",
			Usage:       "Compute embeddings for entries missing from the embeddings file",
			Destination: &embedMissing,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Index journal markdown into the document store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stdout)
			logging.SetDefault(logger)
			ctx = logging.With(ctx, logger)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			var opts []loader.Option
			if embedMissing {
				gemini, err := cfg.newGemini(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, loader.WithEmbedder(gemini))
			}
			ld := loader.New(repo, opts...)

			out := c.Root().Writer
			if notesDir != "" {
				stats, err := ld.LoadDaily(ctx, notesDir, embeddingsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "daily: %d loaded, %d skipped, %d missing embeddings\n",
					stats.Loaded, stats.Skipped, stats.MissingEmbeddings)
			}
			if evergreenDir != "" {
				stats, err := ld.LoadEvergreen(ctx, evergreenDir, evergreenEmbeddings)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "evergreen: %d loaded, %d skipped, %d missing embeddings\n",
					stats.Loaded, stats.Skipped, stats.MissingEmbeddings)
			}
			return nil
		},
	}
}
