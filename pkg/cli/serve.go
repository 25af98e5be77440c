package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/server"
	"github.com/sotaro-f/kioku/pkg/usecase/agent"
	"github.com/sotaro-f/kioku/pkg/usecase/thread"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       "127.0.0.1:8000",
			Sources:     cli.EnvVars("KIOKU_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the journal assistant HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stdout)
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

			var threadOpts []thread.Option
			if cfg.bucket != "" {
				storage, err := cfg.newStorage(ctx)
				if err != nil {
					return err
				}
				threadOpts = append(threadOpts, thread.WithStorage(storage))
			}
			threads := thread.New(repo, threadOpts...)

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.New(flow, threads).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(net.Listener) context.Context {
					return logging.With(context.Background(), logger)
				},
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server starting", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shut down http server")
				}
				logger.Info("http server stopped")
				return nil
			case err := <-errCh:
				return goerr.Wrap(err, "http server failed")
			}
		},
	}
}
