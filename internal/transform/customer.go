package transform

import (
	pkgerrors "relay/pkg/errors"
)

// CustomerEvent is the validated outcome of a customer message. Payload is
// the event body with internal flags removed, ready to send as-is.
type CustomerEvent struct {
	Payload    map[string]interface{}
	CustomerID string
	IsUpdate   bool
}

// Customer validates a customer event and prepares it for delivery. The
// platform customer id and email are always required; the phone number
// becomes required for update events. custom_attributes is coerced to an
// object so the API never receives an array or null there.
func (t *Transformer) Customer(raw map[string]interface{}) (*CustomerEvent, error) {
	isUpdate := getBool(raw, "is_update")

	required := []string{"platform_customer_id", "email"}
	if isUpdate {
		required = append(required, "phone_number")
	}
	for _, field := range required {
		if !hasValue(raw, field) {
			return nil, pkgerrors.ErrValidation.
				WithDetail("field", field).
				WithDetail("message", "missing required customer field: "+field)
		}
	}

	payload := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == "is_update" {
			continue
		}
		payload[k] = v
	}

	if attrs, ok := payload["custom_attributes"].(map[string]interface{}); ok {
		payload["custom_attributes"] = attrs
	} else {
		payload["custom_attributes"] = map[string]interface{}{}
	}

	if phone := getString(payload, "phone_number"); phone != "" {
		payload["phone_number"] = NormalizePhone(phone)
	}
	if phone := getString(payload, "whatsapp_phone_number"); phone != "" {
		payload["whatsapp_phone_number"] = NormalizePhone(phone)
	}

	return &CustomerEvent{
		Payload:    payload,
		CustomerID: getString(raw, "platform_customer_id"),
		IsUpdate:   isUpdate,
	}, nil
}
