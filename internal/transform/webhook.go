package transform

import (
	pkgerrors "relay/pkg/errors"
)

// WebhookEnvelope is a generic pass-through delivery request. The payload is
// forwarded to the tenant's webhook URL unchanged.
type WebhookEnvelope struct {
	ConfigID  string
	EventType string
	Payload   map[string]interface{}
	Timestamp string
}

// Webhook validates a generic webhook envelope. config_id, event_type and an
// object-valued payload are all required.
func (t *Transformer) Webhook(raw map[string]interface{}) (*WebhookEnvelope, error) {
	for _, field := range []string{"config_id", "event_type", "payload"} {
		if _, ok := raw[field]; !ok {
			return nil, pkgerrors.ErrValidation.
				WithDetail("field", field).
				WithDetail("message", "missing required webhook field: "+field)
		}
	}

	payload, ok := raw["payload"].(map[string]interface{})
	if !ok {
		return nil, pkgerrors.ErrValidation.
			WithDetail("field", "payload").
			WithDetail("message", "webhook payload must be an object")
	}

	if attrs, ok := payload["custom_attributes"]; ok {
		if _, isMap := attrs.(map[string]interface{}); !isMap {
			payload["custom_attributes"] = map[string]interface{}{}
		}
	}

	return &WebhookEnvelope{
		ConfigID:  getString(raw, "config_id"),
		EventType: getString(raw, "event_type"),
		Payload:   payload,
		Timestamp: getString(raw, "timestamp"),
	}, nil
}
