package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"example.com/resource-catalogue/internal/logging"
)

func main() {
	logger := logging.New()
	root := &cobra.Command{
		Use:          "catalogue",
		Short:        "Resource catalogue order service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCommand(logger), workerCommand(logger))

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
