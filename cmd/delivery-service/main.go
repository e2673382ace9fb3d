package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "delivery-service",
		Short: "Webhook delivery service",
		Long:  "Delivery service consumes commerce events and delivers them to the external API",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the delivery service",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
					return fmt.Errorf("config file is required")
				}
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Delivery Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil && ctx.Err() == nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}

			return app.Shutdown(context.Background())
		},
	}
}
