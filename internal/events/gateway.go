package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"relay/internal/broker"
	"relay/internal/logger"
	"relay/internal/tenant"
)

// Gateway publishes generic webhook envelopes onto the broker. Events whose
// type the active tenant did not subscribe to are silently filtered here,
// before they ever reach a consumer.
type Gateway struct {
	store    tenant.Store
	producer broker.Producer
	topic    string
	logger   logger.Logger
	now      func() time.Time
}

func NewGateway(store tenant.Store, producer broker.Producer, topic string, log logger.Logger) *Gateway {
	return &Gateway{
		store:    store,
		producer: producer,
		topic:    topic,
		logger:   log,
		now:      time.Now,
	}
}

// Publish enqueues one event for the active tenant. Returns false without
// error when the event was filtered rather than enqueued.
func (g *Gateway) Publish(ctx context.Context, eventType string, payload map[string]interface{}) (bool, error) {
	if eventType == "" {
		g.logger.ErrorwCtx(ctx, "Refusing to publish event without a type")
		return false, nil
	}
	if payload == nil {
		g.logger.ErrorwCtx(ctx, "Refusing to publish event without a payload",
			"event_type", eventType,
		)
		return false, nil
	}

	cfg, err := g.store.LoadActive(ctx)
	if err != nil {
		g.logger.WarnwCtx(ctx, "No active configuration, event not published",
			"error", err,
			"event_type", eventType,
		)
		return false, nil
	}

	if len(cfg.EventTypes) == 0 {
		g.logger.WarnwCtx(ctx, "No event types configured, event not published",
			"event_type", eventType,
		)
		return false, nil
	}

	if !cfg.AllowsEventType(eventType) {
		g.logger.InfowCtx(ctx, "Event type not subscribed, skipping",
			"event_type", eventType,
			"config_id", cfg.ID,
		)
		return false, nil
	}

	envelope := map[string]interface{}{
		"config_id":  cfg.ID,
		"event_type": eventType,
		"payload":    payload,
		"timestamp":  g.now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return false, fmt.Errorf("failed to serialize webhook envelope: %w", err)
	}

	if err := g.producer.Publish(ctx, g.topic, []byte(cfg.ID), body); err != nil {
		return false, fmt.Errorf("failed to publish webhook event: %w", err)
	}

	g.logger.InfowCtx(ctx, "Webhook event published",
		"event_type", eventType,
		"config_id", cfg.ID,
		"topic", g.topic,
	)
	return true, nil
}
