package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"example.com/resource-catalogue/internal/config"
	"example.com/resource-catalogue/internal/orderflow"
)

func workerCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal worker for the order workflow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg, logger)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dialTemporal(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	w := orderflow.RegisterWorker(c, a.pipeline, logger)
	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info("order worker started", "task_queue", orderflow.TaskQueue, "namespace", cfg.Temporal.Namespace)

	<-ctx.Done()
	w.Stop()
	logger.Info("order worker stopped")
	return nil
}
