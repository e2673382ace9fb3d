package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	CRM            CRMConfig
	Delivery       DeliveryConfig
	Management     ManagementConfig
	CircuitBreaker CircuitBreakerConfig
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers  []string     `mapstructure:"brokers"`
	GroupID  string       `mapstructure:"group_id"`
	Topics   TopicsConfig `mapstructure:"topics"`
	DLQTopic string       `mapstructure:"dlq_topic"`
}

// TopicsConfig names one topic per event family.
type TopicsConfig struct {
	Cart     string `mapstructure:"cart"`
	Customer string `mapstructure:"customer"`
	Order    string `mapstructure:"order"`
	Webhook  string `mapstructure:"webhook"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CRMConfig points at the external commerce API.
type CRMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DeliveryConfig carries the per-family retry budgets. The budgets are
// deliberately distinct: order and cart deliveries are single-shot, customer
// retries with a linearly growing delay, the generic webhook path retries
// token acquisition and delivery independently with a fixed delay.
type DeliveryConfig struct {
	Customer             FamilyRetryConfig `mapstructure:"customer"`
	Webhook              FamilyRetryConfig `mapstructure:"webhook"`
	TokenGuardTTLSeconds int               `mapstructure:"token_guard_ttl_seconds"`
}

type FamilyRetryConfig struct {
	MaxRetries        int `mapstructure:"max_retries"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
}

type ManagementConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
