package management

import (
	"time"

	"relay/internal/tenant"
)

// ConfigResponse is the API view of a tenant configuration. The client
// secret and cached token never leave the service; only their presence is
// reported.
type ConfigResponse struct {
	ID                     string     `json:"id"`
	ClientID               string     `json:"client_id"`
	ClientSecretSet        bool       `json:"client_secret_set"`
	WebhookURL             string     `json:"webhook_url"`
	IsActive               bool       `json:"is_active"`
	EventTypes             []string   `json:"event_types"`
	AbandonedCartThreshold int        `json:"abandoned_cart_threshold"`
	HasToken               bool       `json:"has_token"`
	TokenExpiry            *time.Time `json:"token_expiry,omitempty"`
	Version                int64      `json:"version"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

type CreateConfigRequest struct {
	ClientID               string   `json:"client_id"`
	ClientSecret           string   `json:"client_secret"`
	WebhookURL             string   `json:"webhook_url"`
	IsActive               bool     `json:"is_active"`
	EventTypes             []string `json:"event_types"`
	AbandonedCartThreshold int      `json:"abandoned_cart_threshold"`
}

type UpdateConfigRequest struct {
	ClientID               string   `json:"client_id"`
	ClientSecret           string   `json:"client_secret"`
	WebhookURL             string   `json:"webhook_url"`
	IsActive               bool     `json:"is_active"`
	EventTypes             []string `json:"event_types"`
	AbandonedCartThreshold int      `json:"abandoned_cart_threshold"`
}

type AuditLog struct {
	ID           string      `json:"id"`
	ConfigID     string      `json:"config_id,omitempty"`
	Action       string      `json:"action"`
	OldValue     interface{} `json:"old_value,omitempty"`
	NewValue     interface{} `json:"new_value,omitempty"`
	ChangedBy    string      `json:"changed_by"`
	ChangeReason string      `json:"change_reason,omitempty"`
	IPAddress    string      `json:"ip_address,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

func toConfigResponse(cfg *tenant.Config) ConfigResponse {
	return ConfigResponse{
		ID:                     cfg.ID,
		ClientID:               cfg.ClientID,
		ClientSecretSet:        cfg.ClientSecret != "",
		WebhookURL:             cfg.WebhookURL,
		IsActive:               cfg.IsActive,
		EventTypes:             cfg.EventTypes,
		AbandonedCartThreshold: cfg.AbandonedCartThreshold,
		HasToken:               cfg.AccessToken != nil && *cfg.AccessToken != "",
		TokenExpiry:            cfg.TokenExpiry,
		Version:                cfg.Version,
		CreatedAt:              cfg.CreatedAt,
		UpdatedAt:              cfg.UpdatedAt,
	}
}

// auditView is what gets written to the audit trail: the config without any
// secret material.
func auditView(cfg *tenant.Config) map[string]interface{} {
	return map[string]interface{}{
		"id":                       cfg.ID,
		"client_id":                cfg.ClientID,
		"webhook_url":              cfg.WebhookURL,
		"is_active":                cfg.IsActive,
		"event_types":              cfg.EventTypes,
		"abandoned_cart_threshold": cfg.AbandonedCartThreshold,
	}
}
