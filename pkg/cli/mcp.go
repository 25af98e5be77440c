package cli

import (
	"context"
	"os"

	mcpservice "github.com/sotaro-f/kioku/pkg/service/mcp"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the journal retrieval tools over MCP stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// stdout carries the MCP protocol; logs go to stderr
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

			return mcpservice.New(repo, gemini).Run(ctx)
		},
	}
}
