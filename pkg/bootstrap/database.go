package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"relay/internal/config"
	"relay/internal/logger"
	"relay/pkg/retry"
)

// connectPolicy covers services starting before their databases finish
// coming up, which is the normal order under docker compose.
var connectPolicy = retry.Policy{
	MaxAttempts: 5,
	Interval:    2 * time.Second,
	Strategy:    retry.StrategyConstant,
}

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.Config.Database.Redis.Host == "" {
		return nil, nil // Redis is optional; token refresh falls back to a local guard
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		dc.Config.Database.Postgres.User,
		dc.Config.Database.Postgres.Password,
		dc.Config.Database.Postgres.Host,
		dc.Config.Database.Postgres.Port,
		dc.Config.Database.Postgres.DBName,
		dc.Config.Database.Postgres.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = retry.RetryWithCallback(ctx, connectPolicy, func() error {
		return db.PingContext(ctx)
	}, func(attempt int, pingErr error, nextDelay time.Duration) {
		dc.Logger.Warnw("PostgreSQL not ready, retrying",
			"error", pingErr,
			"attempt", attempt,
			"next_delay", nextDelay,
		)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dc.Logger.Info("PostgreSQL connected successfully")
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	if dc.Config.Database.MongoDB.URI == "" {
		return nil, nil // MongoDB is optional; the journal degrades to a no-op
	}

	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Info("MongoDB connected successfully")
	return mongoClient, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, redisClient *redis.Client, postgres *sql.DB, mongoClient *mongo.Client) []error {
	var errs []error

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if postgres != nil {
		if err := postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	if mongoClient != nil {
		if err := mongoClient.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
