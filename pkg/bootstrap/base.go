package bootstrap

import (
	"context"
	"fmt"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/internal/logger"
)

// Base owns the broker resources shared by a service: one producer and any
// number of consumers. The delivery service runs one consumer per event
// family, all registered here so shutdown closes them together.
type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Producer  broker.Producer
	consumers []broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitProducer() error {
	if b.Producer != nil {
		return nil
	}
	b.Producer = broker.NewKafkaProducer(b.Config.Broker.Kafka, b.Logger)
	return nil
}

// NewConsumer creates a consumer tagged with serviceName and tracks it for
// shutdown.
func (b *Base) NewConsumer(serviceName string) broker.Consumer {
	consumer := broker.NewKafkaConsumer(b.Config.Broker.Kafka, b.Logger)
	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}
	b.consumers = append(b.consumers, consumer)
	return consumer
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	for _, consumer := range b.consumers {
		if err := consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
