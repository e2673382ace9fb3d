package dispatch

import (
	"context"
	"net/http"
	"time"

	"relay/internal/broker"
	"relay/internal/constants"
	"relay/internal/journal"
	pkgerrors "relay/pkg/errors"
	"relay/pkg/logging"
	"relay/pkg/metrics"
)

// HandleCart delivers one cart event: single attempt, success on a 2xx
// transport status or a wrapped 200/201 body status.
func (p *Processor) HandleCart(ctx context.Context, msg broker.Message) error {
	ctx = logging.WithEventFamily(ctx, constants.EventFamilyCart)
	o := outcome{family: constants.EventFamilyCart, started: time.Now()}

	data, err := decodePayload(msg)
	if err != nil {
		return p.dropOrFail(ctx, "decode", constants.EventFamilyCart, err, o)
	}

	cfg, err := p.loadActiveConfig(ctx)
	if err != nil {
		return p.dropOrFail(ctx, "config", constants.EventFamilyCart, err, o)
	}
	o.configID = cfg.ID

	accessToken, err := p.tokens.Token(ctx, cfg)
	if err != nil {
		return p.dropOrFail(ctx, "authorize", constants.EventFamilyCart, err, o)
	}

	payload, err := p.transformer.Cart(data)
	if err != nil {
		return p.dropOrFail(ctx, "transform", constants.EventFamilyCart, err, o)
	}
	o.entityID = payload.Cart.PlatformCartID

	metrics.DeliveryAttemptsTotal.WithLabelValues(constants.EventFamilyCart).Inc()
	o.attempts = 1

	resp, err := p.client.Send(ctx, http.MethodPost, p.endpoints.CartURL(), authHeaders(accessToken), payload)
	if err != nil {
		return p.dropOrFail(ctx, "deliver", constants.EventFamilyCart, err, o)
	}
	o.statusCode = resp.Status

	if !deliveryAccepted(resp) {
		err := pkgerrors.ErrTransport.
			WithDetail("status", resp.Status).
			WithMessage("cart delivery rejected")
		return p.dropOrFail(ctx, "deliver", constants.EventFamilyCart, err, o)
	}

	o.result = journal.OutcomeDelivered
	p.finish(ctx, o)
	p.logger.InfowCtx(ctx, "Cart delivered",
		"cart_id", o.entityID,
		"status", resp.Status,
	)
	return nil
}
