package token

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"relay/internal/constants"
	"relay/internal/crmapi"
	"relay/internal/logger"
	"relay/internal/tenant"
	pkgerrors "relay/pkg/errors"
	"relay/pkg/metrics"
)

const guardWait = 200 * time.Millisecond

// Manager obtains bearer tokens for tenant configs. Tokens are cached on the
// config row; a refresh is performed only when the cached token is missing or
// expired, serialized by the guard and persisted with a version check so
// concurrent consumers never clobber each other's token.
type Manager struct {
	store     tenant.Store
	client    crmapi.Sender
	endpoints crmapi.Endpoints
	guard     RefreshGuard
	guardTTL  time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewManager(store tenant.Store, client crmapi.Sender, endpoints crmapi.Endpoints, guard RefreshGuard, guardTTL time.Duration, log logger.Logger) *Manager {
	if guard == nil {
		guard = NoopGuard{}
	}
	if guardTTL <= 0 {
		guardTTL = 30 * time.Second
	}
	return &Manager{
		store:     store,
		client:    client,
		endpoints: endpoints,
		guard:     guard,
		guardTTL:  guardTTL,
		logger:    log,
		now:       time.Now,
	}
}

// SetClock pins the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Token returns a usable bearer token for cfg, refreshing only on a cache
// miss. cfg is updated in place when a refresh happens.
func (m *Manager) Token(ctx context.Context, cfg *tenant.Config) (string, error) {
	if cfg.HasValidToken(m.now()) {
		metrics.TokenCacheHitsTotal.Inc()
		return *cfg.AccessToken, nil
	}
	return m.Refresh(ctx, cfg)
}

// Refresh fetches a new token regardless of the cache state. Used directly
// after an authorization rejection, when the cached token is known bad.
func (m *Manager) Refresh(ctx context.Context, cfg *tenant.Config) (string, error) {
	guardKey := constants.TokenGuardKeyPrefix + cfg.ID

	acquired, err := m.guard.Acquire(ctx, guardKey, m.guardTTL)
	if err != nil {
		m.logger.WarnwCtx(ctx, "Token refresh guard unavailable, proceeding without it",
			"error", err,
			"config_id", cfg.ID,
		)
		acquired = true
	}

	if !acquired {
		// another consumer is refreshing; give it a moment and reuse its token
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(guardWait):
		}

		fresh, err := m.store.LoadByID(ctx, cfg.ID)
		if err == nil && fresh.HasValidToken(m.now()) {
			*cfg = *fresh
			metrics.TokenRefreshTotal.WithLabelValues("coalesced").Inc()
			return *cfg.AccessToken, nil
		}
		// the other refresh did not land; fall through and fetch ourselves
	} else {
		defer func() {
			if err := m.guard.Release(context.WithoutCancel(ctx), guardKey); err != nil {
				m.logger.WarnwCtx(ctx, "Failed to release token refresh guard",
					"error", err,
					"config_id", cfg.ID,
				)
			}
		}()
	}

	value, expiresIn, err := m.fetch(ctx, cfg)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		return "", err
	}

	expiry := m.now().UTC().Add(time.Duration(expiresIn) * time.Second)
	m.persist(ctx, cfg, value, expiry)

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	m.logger.InfowCtx(ctx, "Access token refreshed",
		"config_id", cfg.ID,
		"expires_at", expiry,
	)

	return value, nil
}

// fetch calls the token endpoint. Credentials travel as headers; they are
// never logged.
func (m *Manager) fetch(ctx context.Context, cfg *tenant.Config) (string, int, error) {
	headers := map[string]string{
		"Accept":        "application/json",
		"client_id":     cfg.ClientID,
		"client_secret": cfg.ClientSecret,
	}

	resp, err := m.client.Send(ctx, http.MethodGet, m.endpoints.TokenURL(), headers, nil)
	if err != nil {
		return "", 0, pkgerrors.ErrAuth.WithCause(err).WithMessage("token request failed")
	}

	if !resp.OK() {
		return "", 0, pkgerrors.ErrAuth.
			WithDetail("status", resp.Status).
			WithMessage("token endpoint returned non-success status")
	}

	var body struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   interface{} `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", 0, pkgerrors.ErrAuth.WithCause(err).WithMessage("invalid token response format")
	}
	if body.AccessToken == "" {
		return "", 0, pkgerrors.ErrAuth.WithMessage("access token not found in response")
	}

	expiresIn := constants.DefaultTokenTTLSeconds
	if n, ok := body.ExpiresIn.(float64); ok && n > 0 {
		expiresIn = int(n)
	}

	return body.AccessToken, expiresIn, nil
}

// persist stores the token under the config's version. A version conflict
// means another consumer won the refresh race; its token is adopted instead
// of overwritten. Persistence failures are logged, not returned: the fetched
// token is still valid for this delivery.
func (m *Manager) persist(ctx context.Context, cfg *tenant.Config, value string, expiry time.Time) {
	newVersion, err := m.store.UpdateToken(ctx, cfg.ID, cfg.Version, value, expiry)
	if err == nil {
		cfg.AccessToken = &value
		cfg.TokenExpiry = &expiry
		cfg.Version = newVersion
		return
	}

	if pkgerrors.IsConflict(err) {
		fresh, loadErr := m.store.LoadByID(ctx, cfg.ID)
		if loadErr == nil {
			*cfg = *fresh
			return
		}
		m.logger.WarnwCtx(ctx, "Failed to reload config after token version conflict",
			"error", loadErr,
			"config_id", cfg.ID,
		)
		return
	}

	m.logger.ErrorwCtx(ctx, "Failed to persist refreshed token",
		"error", err,
		"config_id", cfg.ID,
	)
}
