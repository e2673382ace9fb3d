package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/logger"
	"relay/pkg/errors"
	"relay/pkg/logging"
	"relay/pkg/metrics"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key []byte, value []byte) error {
	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   key,
			Value: value,
			Time:  time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	dlqProducer Producer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume fetches records from topic and hands them to handler one at a
// time. Offsets are committed only after the handler returns, so a crash
// mid-delivery replays the record instead of losing it. Retry budgets
// belong to the handlers; the consumer itself never re-runs a record.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			msgCtx := logging.WithServiceName(ctx, c.serviceName)
			if len(m.Key) > 0 {
				msgCtx = logging.WithMessageID(msgCtx, string(m.Key))
			}

			msg := Message{Topic: topic, Key: m.Key, Value: m.Value}
			if err := c.handleMessage(msgCtx, msg, handler); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to process message",
					"error", err,
					"topic", topic,
				)
				if c.dlqProducer != nil && c.cfg.DLQTopic != "" {
					if dlqErr := c.sendToDLQ(msgCtx, msg, err); dlqErr != nil {
						c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ",
							"error", dlqErr,
							"topic", topic,
						)
					}
				} else {
					c.logger.WarnwCtx(msgCtx, "No DLQ configured, committing message to avoid blocking",
						"topic", topic,
					)
				}
				_ = c.reader.CommitMessages(ctx, m)
			} else {
				if err := c.reader.CommitMessages(ctx, m); err != nil {
					c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
						"error", err,
						"topic", topic,
					)
				}
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			}
		}
	}
	c.wg.Wait()
	return err
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg Message, handler HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
			c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
				"error", err,
				"topic", msg.Topic,
			)
		}
	}()
	return handler(ctx, msg)
}

func (c *KafkaConsumer) sendToDLQ(ctx context.Context, msg Message, originalErr error) error {
	var payload interface{} = string(msg.Value)
	if json.Valid(msg.Value) {
		payload = json.RawMessage(msg.Value)
	}
	wrapped, err := json.Marshal(map[string]interface{}{
		"source_topic": msg.Topic,
		"reason":       originalErr.Error(),
		"failed_at":    time.Now().UTC(),
		"payload":      payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ record: %w", err)
	}

	if err := c.dlqProducer.Publish(ctx, c.cfg.DLQTopic, msg.Key, wrapped); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, msg.Topic, "handler_failed").Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", msg.Topic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", originalErr.Error(),
	)

	return nil
}
