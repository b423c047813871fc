package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/grcops/pkg/cli/config"
	httpctrl "github.com/secmon-lab/grcops/pkg/controller/http"
	"github.com/secmon-lab/grcops/pkg/usecase"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
	"github.com/secmon-lab/grcops/pkg/utils/safe"
)

func cmdServe() *cli.Command {
	var repoCfg config.Repository
	var serverCfg config.Server

	var flags []cli.Flag
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)

			if err := serverCfg.Validate(); err != nil {
				return err
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			uc := usecase.New(repo, serverCfg.UseCaseOptions()...)

			httpHandler, err := httpctrl.New(uc, serverCfg.HTTPOptions()...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              serverCfg.Addr(),
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
				BaseContext: func(_ net.Listener) context.Context {
					return ctx
				},
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server",
					slog.Any("server", serverCfg),
					slog.Any("repository", repoCfg),
				)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout())
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown completed")
			return nil
		},
	}
}
