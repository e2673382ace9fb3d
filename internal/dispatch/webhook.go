package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"relay/internal/broker"
	"relay/internal/constants"
	"relay/internal/journal"
	"relay/internal/tenant"
	pkgerrors "relay/pkg/errors"
	"relay/pkg/logging"
	"relay/pkg/metrics"
)

// HandleWebhook forwards a generic webhook envelope to the tenant's own URL.
// Token acquisition and delivery carry independent retry budgets with a
// fixed delay between attempts.
func (p *Processor) HandleWebhook(ctx context.Context, msg broker.Message) error {
	ctx = logging.WithEventFamily(ctx, constants.EventFamilyWebhook)
	o := outcome{family: constants.EventFamilyWebhook, started: time.Now()}

	data, err := decodePayload(msg)
	if err != nil {
		return p.dropOrFail(ctx, "decode", constants.EventFamilyWebhook, err, o)
	}

	env, err := p.transformer.Webhook(data)
	if err != nil {
		return p.dropOrFail(ctx, "validate", constants.EventFamilyWebhook, err, o)
	}
	o.eventType = env.EventType
	o.configID = env.ConfigID

	cfg, err := p.store.LoadByID(ctx, env.ConfigID)
	if err != nil {
		return p.dropOrFail(ctx, "config", constants.EventFamilyWebhook, err, o)
	}

	if err := validateWebhookConfig(cfg); err != nil {
		return p.dropOrFail(ctx, "config", constants.EventFamilyWebhook, err, o)
	}

	maxRetries := p.webhookRetry.MaxRetries
	retryDelay := time.Duration(p.webhookRetry.RetryDelaySeconds) * time.Second

	accessToken, err := p.acquireTokenWithRetry(ctx, cfg, maxRetries, retryDelay)
	if err != nil {
		return p.dropOrFail(ctx, "authorize", constants.EventFamilyWebhook, err, o)
	}

	headers := authHeaders(accessToken)
	headers["X-Webhook-Event"] = env.EventType

	var lastStatus int
	for attempt := 1; attempt <= maxRetries; attempt++ {
		o.attempts = attempt
		metrics.DeliveryAttemptsTotal.WithLabelValues(constants.EventFamilyWebhook).Inc()

		resp, err := p.client.Send(ctx, http.MethodPost, cfg.WebhookURL, headers, env.Payload)
		if err == nil {
			lastStatus = resp.Status
			o.statusCode = resp.Status
			if resp.Status == http.StatusOK {
				o.result = journal.OutcomeDelivered
				p.finish(ctx, o)
				p.logger.InfowCtx(ctx, "Webhook delivered",
					"event_type", env.EventType,
					"config_id", cfg.ID,
					"attempt", attempt,
				)
				return nil
			}
			p.logger.WarnwCtx(ctx, "Webhook delivery rejected",
				"event_type", env.EventType,
				"status", resp.Status,
				"attempt", attempt,
			)
		} else {
			p.logger.WarnwCtx(ctx, "Webhook delivery attempt failed",
				"error", err,
				"event_type", env.EventType,
				"attempt", attempt,
			)
		}

		if attempt < maxRetries {
			if sleepErr := p.sleep(ctx, retryDelay); sleepErr != nil {
				return p.dropOrFail(ctx, "deliver", constants.EventFamilyWebhook, sleepErr, o)
			}
		}
	}

	err = pkgerrors.ErrTransport.
		WithDetail("status", lastStatus).
		WithMessage(fmt.Sprintf("webhook delivery failed after %d attempts", maxRetries))
	return p.dropOrFail(ctx, "deliver", constants.EventFamilyWebhook, err, o)
}

func (p *Processor) acquireTokenWithRetry(ctx context.Context, cfg *tenant.Config, maxRetries int, retryDelay time.Duration) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		accessToken, err := p.tokens.Token(ctx, cfg)
		if err == nil {
			return accessToken, nil
		}
		lastErr = err
		p.logger.WarnwCtx(ctx, "Token acquisition attempt failed",
			"error", err,
			"config_id", cfg.ID,
			"attempt", attempt,
		)
		if attempt < maxRetries {
			if sleepErr := p.sleep(ctx, retryDelay); sleepErr != nil {
				return "", sleepErr
			}
		}
	}
	return "", lastErr
}

// validateWebhookConfig short-circuits before any network call when the
// target config cannot possibly accept a delivery.
func validateWebhookConfig(cfg *tenant.Config) error {
	if !cfg.IsActive {
		return pkgerrors.ErrConfig.WithMessage("webhook configuration is inactive")
	}
	if cfg.WebhookURL == "" {
		return pkgerrors.ErrConfig.WithMessage("webhook URL is not configured")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return pkgerrors.ErrConfig.WithMessage("webhook configuration is missing client credentials")
	}
	return nil
}
