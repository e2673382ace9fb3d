package tenant

import (
	"strings"
	"time"
)

// Config is one tenant's integration profile: credentials for the external
// commerce API, the outbound webhook target, and which event types the
// producer gateway forwards. AccessToken and TokenExpiry cache the last
// bearer token; Version guards concurrent token writes.
type Config struct {
	ID                     string     `json:"id"`
	ClientID               string     `json:"client_id"`
	ClientSecret           string     `json:"-"`
	AccessToken            *string    `json:"-"`
	TokenExpiry            *time.Time `json:"token_expiry,omitempty"`
	WebhookURL             string     `json:"webhook_url"`
	IsActive               bool       `json:"is_active"`
	EventTypes             []string   `json:"event_types"`
	AbandonedCartThreshold int        `json:"abandoned_cart_threshold"`
	Version                int64      `json:"version"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// HasValidToken reports whether the cached token can still be sent.
// Expiry is compared in UTC and must be strictly in the future.
func (c *Config) HasValidToken(now time.Time) bool {
	if c.AccessToken == nil || *c.AccessToken == "" {
		return false
	}
	if c.TokenExpiry == nil {
		return false
	}
	return c.TokenExpiry.UTC().After(now.UTC())
}

// AllowsEventType reports whether the tenant subscribed to eventType.
// An empty subscription list allows nothing.
func (c *Config) AllowsEventType(eventType string) bool {
	for _, t := range c.EventTypes {
		if strings.EqualFold(strings.TrimSpace(t), eventType) {
			return true
		}
	}
	return false
}

func joinEventTypes(types []string) string {
	cleaned := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitEventTypes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			types = append(types, p)
		}
	}
	return types
}
