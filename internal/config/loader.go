package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"relay/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.topics.cart", "BROKER_KAFKA_TOPICS_CART")
	viper.BindEnv("broker.kafka.topics.customer", "BROKER_KAFKA_TOPICS_CUSTOMER")
	viper.BindEnv("broker.kafka.topics.order", "BROKER_KAFKA_TOPICS_ORDER")
	viper.BindEnv("broker.kafka.topics.webhook", "BROKER_KAFKA_TOPICS_WEBHOOK")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("crm.base_url", "CRM_BASE_URL")
	viper.BindEnv("crm.timeout_seconds", "CRM_TIMEOUT_SECONDS")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if baseURL := viper.GetString("CRM_BASE_URL"); baseURL != "" {
		cfg.CRM.BaseURL = baseURL
	}

	return nil
}

// applyDefaults fills the retry budgets that match the historical behavior
// of each delivery family.
func applyDefaults(cfg *Config) {
	if cfg.Broker.Kafka.Topics.Cart == "" {
		cfg.Broker.Kafka.Topics.Cart = constants.DefaultCartTopic
	}
	if cfg.Broker.Kafka.Topics.Customer == "" {
		cfg.Broker.Kafka.Topics.Customer = constants.DefaultCustomerTopic
	}
	if cfg.Broker.Kafka.Topics.Order == "" {
		cfg.Broker.Kafka.Topics.Order = constants.DefaultOrderTopic
	}
	if cfg.Broker.Kafka.Topics.Webhook == "" {
		cfg.Broker.Kafka.Topics.Webhook = constants.DefaultWebhookTopic
	}
	if cfg.CRM.TimeoutSeconds <= 0 {
		cfg.CRM.TimeoutSeconds = 10
	}
	if cfg.Delivery.Customer.MaxRetries <= 0 {
		cfg.Delivery.Customer.MaxRetries = 1
	}
	if cfg.Delivery.Customer.RetryDelaySeconds <= 0 {
		cfg.Delivery.Customer.RetryDelaySeconds = 1
	}
	if cfg.Delivery.Webhook.MaxRetries <= 0 {
		cfg.Delivery.Webhook.MaxRetries = 3
	}
	if cfg.Delivery.Webhook.RetryDelaySeconds <= 0 {
		cfg.Delivery.Webhook.RetryDelaySeconds = 5
	}
	if cfg.Delivery.TokenGuardTTLSeconds <= 0 {
		cfg.Delivery.TokenGuardTTLSeconds = 30
	}
}
