package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/usecase/thread"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func threadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "threads",
		Usage: "Manage chat threads",
		Commands: []*cli.Command{
			threadsListCommand(),
			threadsExportCommand(),
		},
	}
}

func threadsListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List threads, most recently updated first",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stderr)
			logging.SetDefault(logger)
			ctx = logging.With(ctx, logger)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			threads, err := thread.New(repo).List(ctx)
			if err != nil {
				return err
			}

			out := c.Root().Writer
			if len(threads) == 0 {
				fmt.Fprintln(out, "no threads")
				return nil
			}
			for _, t := range threads {
				fmt.Fprintf(out, "%s  %s  %s\n",
					t.ID, t.UpdatedAt.Format("2006-01-02 15:04"), t.Title)
			}
			return nil
		},
	}
}

func threadsExportCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "export",
		Usage:     "Archive a thread with its messages to Cloud Storage",
		ArgsUsage: "<thread-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			threadID := c.Args().First()
			if threadID == "" {
				return goerr.New("thread-id argument is required")
			}

			logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stderr)
			logging.SetDefault(logger)
			ctx = logging.With(ctx, logger)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			uc := thread.New(repo, thread.WithStorage(storage))
			key, err := uc.Export(ctx, model.ThreadID(threadID))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "exported to gs://%s/%s\n", cfg.bucket, key)
			return nil
		},
	}
}
