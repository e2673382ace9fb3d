package management

import (
	"context"
	"net/url"
	"strings"

	"relay/internal/logger"
	"relay/internal/tenant"
	pkgerrors "relay/pkg/errors"
	"relay/pkg/metrics"
)

const defaultAbandonedCartThreshold = 30

type Service interface {
	CreateConfig(ctx context.Context, req CreateConfigRequest, actor, ip string) (*ConfigResponse, error)
	GetConfig(ctx context.Context, id string) (*ConfigResponse, error)
	ListConfigs(ctx context.Context) ([]ConfigResponse, error)
	UpdateConfig(ctx context.Context, id string, req UpdateConfigRequest, actor, ip string) (*ConfigResponse, error)
	DeleteConfig(ctx context.Context, id string, actor, ip string) error
	ActivateConfig(ctx context.Context, id string, actor, ip string) (*ConfigResponse, error)
	GetAuditLogs(ctx context.Context, configID *string, limit int) ([]AuditLog, error)
}

type service struct {
	store  tenant.Store
	audit  *AuditLogger
	logger logger.Logger
}

func NewService(store tenant.Store, audit *AuditLogger, log logger.Logger) Service {
	return &service{store: store, audit: audit, logger: log}
}

func (s *service) CreateConfig(ctx context.Context, req CreateConfigRequest, actor, ip string) (*ConfigResponse, error) {
	cfg := &tenant.Config{
		ClientID:               strings.TrimSpace(req.ClientID),
		ClientSecret:           req.ClientSecret,
		WebhookURL:             strings.TrimSpace(req.WebhookURL),
		IsActive:               req.IsActive,
		EventTypes:             cleanEventTypes(req.EventTypes),
		AbandonedCartThreshold: req.AbandonedCartThreshold,
	}
	if cfg.AbandonedCartThreshold == 0 {
		cfg.AbandonedCartThreshold = defaultAbandonedCartThreshold
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.IsActive {
		if err := s.store.Activate(ctx, cfg.ID); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to enforce single active config on create",
				"error", err,
				"config_id", cfg.ID,
			)
		}
	}

	metrics.ConfigChangesTotal.WithLabelValues("create").Inc()
	s.logAudit(ctx, AuditLogEntry{
		ConfigID:  cfg.ID,
		Action:    "create",
		NewValue:  auditView(cfg),
		ChangedBy: actor,
		IPAddress: ip,
	})

	resp := toConfigResponse(cfg)
	return &resp, nil
}

func (s *service) GetConfig(ctx context.Context, id string) (*ConfigResponse, error) {
	cfg, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toConfigResponse(cfg)
	return &resp, nil
}

func (s *service) ListConfigs(ctx context.Context) ([]ConfigResponse, error) {
	configs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]ConfigResponse, 0, len(configs))
	for i := range configs {
		responses = append(responses, toConfigResponse(&configs[i]))
	}
	return responses, nil
}

func (s *service) UpdateConfig(ctx context.Context, id string, req UpdateConfigRequest, actor, ip string) (*ConfigResponse, error) {
	existing, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldView := auditView(existing)

	cfg := &tenant.Config{
		ID:                     id,
		ClientID:               strings.TrimSpace(req.ClientID),
		ClientSecret:           req.ClientSecret,
		WebhookURL:             strings.TrimSpace(req.WebhookURL),
		IsActive:               req.IsActive,
		EventTypes:             cleanEventTypes(req.EventTypes),
		AbandonedCartThreshold: req.AbandonedCartThreshold,
	}
	if cfg.ClientSecret == "" {
		// blank secret in an update keeps the stored one
		cfg.ClientSecret = existing.ClientSecret
	}
	if cfg.AbandonedCartThreshold == 0 {
		cfg.AbandonedCartThreshold = existing.AbandonedCartThreshold
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.IsActive {
		if err := s.store.Activate(ctx, cfg.ID); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to enforce single active config on update",
				"error", err,
				"config_id", cfg.ID,
			)
		}
	}

	updated, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.ConfigChangesTotal.WithLabelValues("update").Inc()
	s.logAudit(ctx, AuditLogEntry{
		ConfigID:  id,
		Action:    "update",
		OldValue:  oldView,
		NewValue:  auditView(updated),
		ChangedBy: actor,
		IPAddress: ip,
	})

	resp := toConfigResponse(updated)
	return &resp, nil
}

func (s *service) DeleteConfig(ctx context.Context, id string, actor, ip string) error {
	existing, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	metrics.ConfigChangesTotal.WithLabelValues("delete").Inc()
	s.logAudit(ctx, AuditLogEntry{
		ConfigID:  id,
		Action:    "delete",
		OldValue:  auditView(existing),
		ChangedBy: actor,
		IPAddress: ip,
	})

	return nil
}

func (s *service) ActivateConfig(ctx context.Context, id string, actor, ip string) (*ConfigResponse, error) {
	if err := s.store.Activate(ctx, id); err != nil {
		return nil, err
	}

	cfg, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.ConfigChangesTotal.WithLabelValues("activate").Inc()
	s.logAudit(ctx, AuditLogEntry{
		ConfigID:  id,
		Action:    "activate",
		NewValue:  auditView(cfg),
		ChangedBy: actor,
		IPAddress: ip,
	})

	resp := toConfigResponse(cfg)
	return &resp, nil
}

func (s *service) GetAuditLogs(ctx context.Context, configID *string, limit int) ([]AuditLog, error) {
	return s.audit.GetAuditLogs(ctx, configID, limit)
}

func (s *service) logAudit(ctx context.Context, entry AuditLogEntry) {
	if s.audit == nil {
		return
	}
	if entry.ChangedBy == "" {
		entry.ChangedBy = "unknown"
	}
	if err := s.audit.LogConfigChange(ctx, entry); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to write audit log",
			"error", err,
			"config_id", entry.ConfigID,
			"action", entry.Action,
		)
	}
}

func validateConfig(cfg *tenant.Config) error {
	if cfg.ClientID == "" {
		return pkgerrors.ErrValidation.WithDetail("message", "client_id is required")
	}
	if cfg.ClientSecret == "" {
		return pkgerrors.ErrValidation.WithDetail("message", "client_secret is required")
	}
	if len(cfg.EventTypes) == 0 {
		return pkgerrors.ErrValidation.WithDetail("message", "at least one event type is required")
	}
	if cfg.AbandonedCartThreshold <= 0 {
		return pkgerrors.ErrValidation.WithDetail("message", "abandoned_cart_threshold must be positive")
	}
	if cfg.WebhookURL != "" {
		u, err := url.Parse(cfg.WebhookURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return pkgerrors.ErrValidation.WithDetail("message", "webhook_url must be a valid absolute URL")
		}
	}
	return nil
}

func cleanEventTypes(types []string) []string {
	cleaned := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return cleaned
}
