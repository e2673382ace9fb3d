package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/internal/crmapi"
	"relay/internal/journal"
	"relay/internal/logger"
	"relay/internal/tenant"
	"relay/internal/transform"
	pkgerrors "relay/pkg/errors"
	"relay/pkg/metrics"
)

// TokenProvider is the slice of the token manager the consumers need.
type TokenProvider interface {
	Token(ctx context.Context, cfg *tenant.Config) (string, error)
	Refresh(ctx context.Context, cfg *tenant.Config) (string, error)
}

// Processor hosts the four family consumers. Each handler runs the same
// state flow: decode, validate, resolve config, authorize, transform,
// deliver. Failures drop the message; the journal keeps the record.
type Processor struct {
	store         tenant.Store
	tokens        TokenProvider
	transformer   *transform.Transformer
	client        crmapi.Sender
	endpoints     crmapi.Endpoints
	journal       journal.Recorder
	logger        logger.Logger
	customerRetry config.FamilyRetryConfig
	webhookRetry  config.FamilyRetryConfig
	sleep         func(ctx context.Context, d time.Duration) error
}

type Deps struct {
	Store         tenant.Store
	Tokens        TokenProvider
	Transformer   *transform.Transformer
	Client        crmapi.Sender
	Endpoints     crmapi.Endpoints
	Journal       journal.Recorder
	Logger        logger.Logger
	CustomerRetry config.FamilyRetryConfig
	WebhookRetry  config.FamilyRetryConfig
}

func NewProcessor(deps Deps) *Processor {
	j := deps.Journal
	if j == nil {
		j = journal.NopRecorder{}
	}
	return &Processor{
		store:         deps.Store,
		tokens:        deps.Tokens,
		transformer:   deps.Transformer,
		client:        deps.Client,
		endpoints:     deps.Endpoints,
		journal:       j,
		logger:        deps.Logger,
		customerRetry: deps.CustomerRetry,
		webhookRetry:  deps.WebhookRetry,
		sleep:         sleepCtx,
	}
}

// SetSleep replaces the retry delay, for tests.
func (p *Processor) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	p.sleep = sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func decodePayload(msg broker.Message) (map[string]interface{}, error) {
	if len(msg.Value) == 0 {
		return nil, pkgerrors.ErrValidation.WithMessage("empty message received")
	}
	var data map[string]interface{}
	if err := json.Unmarshal(msg.Value, &data); err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid JSON message format")
	}
	return data, nil
}

// authHeaders carries the token verbatim; the API does not use a Bearer
// prefix.
func authHeaders(token string) map[string]string {
	return map[string]string{
		"Accept":        "application/json",
		"Authorization": token,
	}
}

type outcome struct {
	family     string
	eventType  string
	configID   string
	entityID   string
	result     string
	err        error
	attempts   int
	statusCode int
	started    time.Time
}

// finish records the delivery outcome in metrics and the journal.
func (p *Processor) finish(ctx context.Context, o outcome) {
	duration := time.Since(o.started)
	metrics.DeliveriesTotal.WithLabelValues(o.family, o.result).Inc()
	metrics.ObserveDeliveryDuration(o.family, duration, o.result)

	entry := journal.Entry{
		EventFamily: o.family,
		EventType:   o.eventType,
		ConfigID:    o.configID,
		EntityID:    o.entityID,
		Outcome:     o.result,
		Attempts:    o.attempts,
		StatusCode:  o.statusCode,
		DurationMS:  duration.Milliseconds(),
	}
	if o.err != nil {
		entry.Error = o.err.Error()
		var appErr *pkgerrors.Error
		if errors.As(o.err, &appErr) {
			entry.ErrorCode = appErr.Code
		}
	}
	p.journal.Record(ctx, entry)
}

// dropOrFail classifies a handler error: input and config problems are
// dropped quietly (return nil so the broker just commits), everything else
// propagates so the broker can route the message to the DLQ.
func (p *Processor) dropOrFail(ctx context.Context, stage string, family string, err error, o outcome) error {
	if pkgerrors.IsValidation(err) || pkgerrors.IsTransform(err) || pkgerrors.IsConfig(err) || pkgerrors.IsNotFound(err) {
		o.result = journal.OutcomeDropped
		o.err = err
		p.finish(ctx, o)
		p.logger.ErrorwCtx(ctx, "Dropping message",
			"error", err,
			"event_family", family,
			"stage", stage,
		)
		return nil
	}

	o.result = journal.OutcomeFailed
	o.err = err
	p.finish(ctx, o)
	p.logger.ErrorwCtx(ctx, "Delivery failed",
		"error", err,
		"event_family", family,
		"stage", stage,
	)
	return err
}

func (p *Processor) loadActiveConfig(ctx context.Context) (*tenant.Config, error) {
	cfg, err := p.store.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// deliveryAccepted applies the create-endpoint success rule: a 200/201
// transport status, or a wrapped 200/201 status embedded in the body.
func deliveryAccepted(resp *crmapi.Response) bool {
	if resp.Status == 200 || resp.Status == 201 {
		return true
	}
	wrapped := resp.WrappedStatus()
	return wrapped == 200 || wrapped == 201
}
