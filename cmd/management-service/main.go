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

// @title           Relay Management Service API
// @version         1.0
// @description     REST API for managing webhook configurations and browsing the audit trail

// @contact.name   API Support
// @contact.email  support@example.com

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "management-service",
		Short: "Management Service for webhook delivery",
		Long:  "Management Service provides REST API for webhook configurations, audit logs and manual event publishing",
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
		Short: "Start the management service",
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

			log.InfowCtx(ctx, "Starting Management Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}
