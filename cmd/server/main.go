// Command ollamamq runs the fair-queuing request dispatcher that sits in
// front of an Ollama-compatible backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ollamamq/ollamamq/internal/app"
	"github.com/ollamamq/ollamamq/internal/config"
	"github.com/ollamamq/ollamamq/pkg/logger"
)

func main() {
	root := &cobra.Command{
		Use:   "ollamamq",
		Short: "Fair-queuing request dispatcher for Ollama-compatible backends",
	}
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatcher HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			log, err := logger.New(cfg.LogFile, cfg.LogFileMaxSizeMB)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer log.Sync()

			application := app.NewApp(cfg, log)
			log.Info("ollamamq starting")

			if err := application.Run(); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}
