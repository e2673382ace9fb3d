package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateStatic rejects configurations that can never produce a working
// service, before any connection is attempted.
func ValidateStatic(cfg *Config) error {
	var errs []string

	if len(cfg.Broker.Kafka.Brokers) == 0 {
		errs = append(errs, "broker.kafka.brokers is required")
	}
	if cfg.Broker.Kafka.GroupID == "" {
		errs = append(errs, "broker.kafka.group_id is required")
	}

	if cfg.CRM.BaseURL == "" {
		errs = append(errs, "crm.base_url is required")
	} else if u, err := url.Parse(cfg.CRM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("crm.base_url %q is not a valid absolute URL", cfg.CRM.BaseURL))
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", cfg.Server.Port))
	}

	if cfg.Management.RateLimit.Enabled {
		if cfg.Management.RateLimit.RPS <= 0 {
			errs = append(errs, "management.rate_limit.rps must be positive when enabled")
		}
		if cfg.Management.RateLimit.Burst <= 0 {
			errs = append(errs, "management.rate_limit.burst must be positive when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
