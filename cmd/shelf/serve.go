package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jbweber/homelab/shelf/internal/api"
	"github.com/jbweber/homelab/shelf/internal/config"
	"github.com/jbweber/homelab/shelf/internal/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logging.Flusher(logger)()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

// serve opens the datastore and runs the API server until ctx is done
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ds, err := cfg.OpenDatastore(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Warn("failed to close datastore", zap.Error(err))
		}
	}()

	router := api.NewRouter(api.NewAPI(ds, logger), cfg.Server.RequestTimeout)
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     zap.NewStdLog(logger),
	}
	return runServer(ctx, server, cfg.Server.ShutdownTimeout, logger)
}

// runServer serves until ctx is done or the listener fails, then shuts the
// server down, forcing it closed when the graceful shutdown times out.
func runServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		if ctx.Err() != nil {
			logger.Info("api server stopping", zap.String("reason", "requested to stop"))
		} else {
			logger.Info("api server stopping", zap.String("reason", "errored at running"))
		}

		sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(sCtx)
		switch {
		case err == nil:
			logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			logger.Warn("api server graceful shutdown timed out")
		default:
			logger.Warn("api server graceful shutdown failed", zap.Error(err))
		}
		if err != nil {
			logger.Warn("api server going to force shutdown", zap.Error(server.Close()))
		}
		// Only the serving goroutine reports errors
		return nil
	})

	err := g.Wait()
	logger.Info("api server stopped", zap.Error(err))
	return err
}
