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

// HandleOrder delivers one order event in a single attempt. New orders POST
// the full payload; updates PATCH the order fields only.
func (p *Processor) HandleOrder(ctx context.Context, msg broker.Message) error {
	ctx = logging.WithEventFamily(ctx, constants.EventFamilyOrder)
	o := outcome{family: constants.EventFamilyOrder, started: time.Now()}

	data, err := decodePayload(msg)
	if err != nil {
		return p.dropOrFail(ctx, "decode", constants.EventFamilyOrder, err, o)
	}

	cfg, err := p.loadActiveConfig(ctx)
	if err != nil {
		return p.dropOrFail(ctx, "config", constants.EventFamilyOrder, err, o)
	}
	o.configID = cfg.ID

	accessToken, err := p.tokens.Token(ctx, cfg)
	if err != nil {
		return p.dropOrFail(ctx, "authorize", constants.EventFamilyOrder, err, o)
	}

	event, err := p.transformer.Order(data)
	if err != nil {
		return p.dropOrFail(ctx, "transform", constants.EventFamilyOrder, err, o)
	}
	o.entityID = event.OrderID

	method := http.MethodPost
	if event.IsUpdate {
		method = http.MethodPatch
	}

	metrics.DeliveryAttemptsTotal.WithLabelValues(constants.EventFamilyOrder).Inc()
	o.attempts = 1

	resp, err := p.client.Send(ctx, method, p.endpoints.OrderURL(), authHeaders(accessToken), event.Payload)
	if err != nil {
		return p.dropOrFail(ctx, "deliver", constants.EventFamilyOrder, err, o)
	}
	o.statusCode = resp.Status

	if !deliveryAccepted(resp) {
		err := pkgerrors.ErrTransport.
			WithDetail("status", resp.Status).
			WithMessage("order delivery rejected")
		return p.dropOrFail(ctx, "deliver", constants.EventFamilyOrder, err, o)
	}

	o.result = journal.OutcomeDelivered
	p.finish(ctx, o)
	p.logger.InfowCtx(ctx, "Order delivered",
		"order_id", event.OrderID,
		"is_update", event.IsUpdate,
		"status", resp.Status,
	)
	return nil
}
