package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq" // PostgreSQL driver

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/events"
	"relay/internal/logger"
	"relay/internal/management"
	"relay/internal/tenant"
	"relay/pkg/bootstrap"
	"relay/pkg/health"
	"relay/pkg/metrics"
	"relay/pkg/middleware"
	"relay/pkg/migrations"
	"relay/pkg/ratelimit"
)

type App struct {
	config      *config.Config
	logger      logger.Logger
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	producer    broker.Producer
	server      *http.Server
	router      *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("management-service")
	}
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db, "migrations/postgres"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.logger.Info("Database migrations applied")
	}

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.Management.RateLimit.Enabled {
		rateLimitConfig := ratelimit.Config{
			RPS:             a.config.Management.RateLimit.RPS,
			Burst:           a.config.Management.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.Management.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.Management.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.Middleware(rateLimitConfig))
		a.logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	store := tenant.NewPostgresStore(a.db)
	audit := management.NewAuditLogger(a.db)
	svc := management.NewService(store, audit, a.logger)

	handler := management.NewHandler(svc, a.logger)
	handler.RegisterRoutes(router)

	// manual event publishing goes through the same gateway the platform uses
	a.producer = broker.NewKafkaProducer(a.config.Broker.Kafka, a.logger)
	gateway := events.NewGateway(store, a.producer, a.config.Broker.Kafka.Topics.Webhook, a.logger)
	eventsHandler := management.NewEventsHandler(gateway, a.logger)
	eventsHandler.RegisterRoutes(router)

	metrics.RegisterManagementMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db, nil)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
