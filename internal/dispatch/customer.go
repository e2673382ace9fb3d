package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"relay/internal/broker"
	"relay/internal/constants"
	"relay/internal/journal"
	pkgerrors "relay/pkg/errors"
	"relay/pkg/logging"
	"relay/pkg/metrics"
)

// HandleCustomer delivers one customer event with the customer retry budget:
// the first attempt plus up to MaxRetries re-attempts. A 401/403 forces a
// token refresh and consumes one re-attempt; other non-2xx responses sleep
// RetryDelay * attempt before the next try.
func (p *Processor) HandleCustomer(ctx context.Context, msg broker.Message) error {
	ctx = logging.WithEventFamily(ctx, constants.EventFamilyCustomer)
	o := outcome{family: constants.EventFamilyCustomer, started: time.Now()}

	data, err := decodePayload(msg)
	if err != nil {
		return p.dropOrFail(ctx, "decode", constants.EventFamilyCustomer, err, o)
	}

	event, err := p.transformer.Customer(data)
	if err != nil {
		return p.dropOrFail(ctx, "validate", constants.EventFamilyCustomer, err, o)
	}
	o.entityID = event.CustomerID

	cfg, err := p.loadActiveConfig(ctx)
	if err != nil {
		return p.dropOrFail(ctx, "config", constants.EventFamilyCustomer, err, o)
	}
	o.configID = cfg.ID

	accessToken, err := p.tokens.Token(ctx, cfg)
	if err != nil {
		return p.dropOrFail(ctx, "authorize", constants.EventFamilyCustomer, err, o)
	}

	maxAttempts := p.customerRetry.MaxRetries + 1
	retryDelay := time.Duration(p.customerRetry.RetryDelaySeconds) * time.Second

	var lastStatus int
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		o.attempts = attempt
		metrics.DeliveryAttemptsTotal.WithLabelValues(constants.EventFamilyCustomer).Inc()

		resp, err := p.client.Send(ctx, http.MethodPost, p.endpoints.CustomerURL(), authHeaders(accessToken), event.Payload)
		if err != nil {
			o.err = err
			if attempt == maxAttempts {
				return p.dropOrFail(ctx, "deliver", constants.EventFamilyCustomer, err, o)
			}
			if sleepErr := p.sleep(ctx, retryDelay*time.Duration(attempt)); sleepErr != nil {
				return p.dropOrFail(ctx, "deliver", constants.EventFamilyCustomer, sleepErr, o)
			}
			continue
		}
		lastStatus = resp.Status
		o.statusCode = resp.Status

		if resp.OK() {
			o.result = journal.OutcomeDelivered
			p.finish(ctx, o)
			p.logger.InfowCtx(ctx, "Customer delivered",
				"customer_id", event.CustomerID,
				"is_update", event.IsUpdate,
				"attempt", attempt,
			)
			return nil
		}

		if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
			if attempt == maxAttempts {
				break
			}
			p.logger.InfowCtx(ctx, "Token rejected, refreshing",
				"customer_id", event.CustomerID,
				"status", resp.Status,
				"attempt", attempt,
			)
			accessToken, err = p.tokens.Refresh(ctx, cfg)
			if err != nil {
				return p.dropOrFail(ctx, "authorize", constants.EventFamilyCustomer, err, o)
			}
			continue
		}

		if attempt == maxAttempts {
			break
		}
		p.logger.WarnwCtx(ctx, "Customer delivery rejected, retrying",
			"customer_id", event.CustomerID,
			"status", resp.Status,
			"attempt", attempt,
		)
		if sleepErr := p.sleep(ctx, retryDelay*time.Duration(attempt)); sleepErr != nil {
			return p.dropOrFail(ctx, "deliver", constants.EventFamilyCustomer, sleepErr, o)
		}
	}

	err = pkgerrors.ErrTransport.
		WithDetail("status", lastStatus).
		WithMessage(fmt.Sprintf("customer delivery failed after %d attempts", o.attempts))
	return p.dropOrFail(ctx, "deliver", constants.EventFamilyCustomer, err, o)
}
