package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"example.com/resource-catalogue/internal/api"
	"example.com/resource-catalogue/internal/auth"
	"example.com/resource-catalogue/internal/config"
	"example.com/resource-catalogue/internal/orderflow"
	"example.com/resource-catalogue/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(logger *slog.Logger) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalogue order API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var orders api.Orderer = a.pipeline
	if cfg.Temporal.Address != "" {
		c, err := dialTemporal(cfg.Temporal, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		orders = orderflow.NewRunner(c, logger)
		logger.Info("orders run through temporal", "address", cfg.Temporal.Address, "task_queue", orderflow.TaskQueue)
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.Access.RateLimit {
		limiter = ratelimit.NewWindow(5 * time.Second)
	}

	serverLogger := logger.With("component", "catalogue.http")
	handler := api.NewServer(api.Deps{
		Orders:   orders,
		Quotes:   a.quotes,
		Datasets: a.datasets,
		Ledger:   a.ledger,
		Airbus:   a.airbus,
		Fetcher:  a.fetcher,
		Auth:     auth.NewParser(cfg.Access.WorkspacesClaim),
		Policy:   auth.Policy{Enforce: cfg.Access.PolicyCheck},
		Limiter:  limiter,
	}, api.Settings{
		RootPath:      cfg.HTTP.RootPath,
		StaticPath:    cfg.HTTP.StaticPath,
		SourceBaseURL: cfg.Catalogue.SourceBaseURL,
	}, serverLogger).Router()

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info("catalogue API listening", "addr", cfg.HTTP.Addr, "root_path", cfg.HTTP.RootPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		serverLogger.Error("graceful shutdown failed", "error", err)
		return err
	}
	serverLogger.Info("catalogue server stopped")
	return nil
}
