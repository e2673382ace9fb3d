package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/crmapi"
	"relay/internal/dispatch"
	"relay/internal/journal"
	"relay/internal/logger"
	"relay/internal/tenant"
	"relay/internal/token"
	"relay/internal/transform"
	"relay/pkg/bootstrap"
	"relay/pkg/circuitbreaker"
	"relay/pkg/health"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/migrations"
)

const serviceName = "delivery-service"

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	redisClient *redis.Client
	mongoClient *mongo.Client
	processor   *dispatch.Processor
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initProcessor()

	metrics.RegisterDeliveryMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db, "migrations/postgres"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.Info("Database migrations applied")
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.Warnw("Redis connection failed, token refreshes will not be coalesced across consumers",
			"error", err,
		)
	} else {
		a.redisClient = redisClient
	}

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.Logger.Warnw("MongoDB connection failed, delivery journal disabled",
			"error", err,
		)
	} else if mongoClient != nil {
		a.mongoClient = mongoClient
		mongoDB := mongoClient.Database(a.mongoDBName())
		if err := migrations.EnsureJournalIndexes(ctx, mongoDB); err != nil {
			a.Logger.Warnw("Failed to ensure journal indexes",
				"error", err,
			)
		}
	}

	return nil
}

func (a *App) mongoDBName() string {
	if a.Config.Database.MongoDB.Database != "" {
		return a.Config.Database.MongoDB.Database
	}
	return "relay"
}

func (a *App) initProcessor() {
	store := tenant.NewPostgresStore(a.db)
	endpoints := crmapi.NewEndpoints(a.Config.CRM.BaseURL)

	clientOpts := []crmapi.Option{}
	if a.Config.CircuitBreaker.Enabled {
		breakerCfg := circuitbreaker.DefaultConfig("crm-api")
		if a.Config.CircuitBreaker.MaxRequests > 0 {
			breakerCfg.MaxRequests = a.Config.CircuitBreaker.MaxRequests
		}
		if a.Config.CircuitBreaker.Interval > 0 {
			breakerCfg.Interval = a.Config.CircuitBreaker.Interval
		}
		if a.Config.CircuitBreaker.Timeout > 0 {
			breakerCfg.Timeout = a.Config.CircuitBreaker.Timeout
		}
		if a.Config.CircuitBreaker.FailureRatio > 0 && a.Config.CircuitBreaker.MinRequests > 0 {
			ratio := a.Config.CircuitBreaker.FailureRatio
			minRequests := a.Config.CircuitBreaker.MinRequests
			breakerCfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= minRequests && failureRatio >= ratio
			}
		}
		clientOpts = append(clientOpts, crmapi.WithBreaker(circuitbreaker.NewWrapper(breakerCfg)))
	}
	client := crmapi.NewClient(time.Duration(a.Config.CRM.TimeoutSeconds)*time.Second, clientOpts...)

	var guard token.RefreshGuard
	if a.redisClient != nil {
		guard = token.NewRedisGuard(a.redisClient)
	}
	guardTTL := time.Duration(a.Config.Delivery.TokenGuardTTLSeconds) * time.Second
	tokens := token.NewManager(store, client, endpoints, guard, guardTTL, a.Logger)

	var recorder journal.Recorder
	if a.mongoClient != nil {
		recorder = journal.NewMongoRecorder(a.mongoClient.Database(a.mongoDBName()), a.Logger)
	}

	a.processor = dispatch.NewProcessor(dispatch.Deps{
		Store:         store,
		Tokens:        tokens,
		Transformer:   transform.New(a.Logger),
		Client:        client,
		Endpoints:     endpoints,
		Journal:       recorder,
		Logger:        a.Logger,
		CustomerRetry: a.Config.Delivery.Customer,
		WebhookRetry:  a.Config.Delivery.Webhook,
	})
}

func (a *App) initHTTPServer() error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	families := []struct {
		name    string
		topic   string
		handler broker.HandlerFunc
	}{
		{constants.EventFamilyCart, a.Config.Broker.Kafka.Topics.Cart, a.processor.HandleCart},
		{constants.EventFamilyCustomer, a.Config.Broker.Kafka.Topics.Customer, a.processor.HandleCustomer},
		{constants.EventFamilyOrder, a.Config.Broker.Kafka.Topics.Order, a.processor.HandleOrder},
		{constants.EventFamilyWebhook, a.Config.Broker.Kafka.Topics.Webhook, a.processor.HandleWebhook},
	}

	for _, family := range families {
		consumer := a.NewConsumer(serviceName)
		topic := family.topic
		handler := family.handler
		familyName := family.name

		g.Go(func() error {
			consumeCtx := logging.WithServiceName(gCtx, serviceName)
			a.Logger.InfowCtx(consumeCtx, "Starting family consumer",
				"event_family", familyName,
				"topic", topic,
			)
			return consumer.Consume(gCtx, topic, handler)
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down delivery service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
