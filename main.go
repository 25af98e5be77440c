package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sotaro-f/kioku/pkg/cli"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, os.Args); err != nil {
		logging.Default().Error("command failed", "error", err.Message)
		os.Exit(err.Code)
	}
}
