package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/broker"
	"relay/internal/config"
	"relay/internal/crmapi"
	"relay/internal/journal"
	"relay/internal/logger"
	"relay/internal/tenant"
	"relay/internal/transform"
	pkgerrors "relay/pkg/errors"
)

type sentRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

type scriptedSender struct {
	responses []*crmapi.Response
	errs      []error
	requests  []sentRequest
}

func (s *scriptedSender) Send(ctx context.Context, method, url string, headers map[string]string, body interface{}) (*crmapi.Response, error) {
	i := len(s.requests)
	s.requests = append(s.requests, sentRequest{Method: method, URL: url, Headers: headers, Body: body})
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return &crmapi.Response{Status: 200, Body: []byte(`{}`)}, nil
}

type stubTokens struct {
	token        string
	refreshed    string
	tokenErr     error
	tokenErrs    []error
	refreshErr   error
	tokenCalls   int
	refreshCalls int
}

func (s *stubTokens) Token(ctx context.Context, cfg *tenant.Config) (string, error) {
	s.tokenCalls++
	if len(s.tokenErrs) > 0 {
		err := s.tokenErrs[0]
		s.tokenErrs = s.tokenErrs[1:]
		if err != nil {
			return "", err
		}
		return s.token, nil
	}
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return s.token, nil
}

func (s *stubTokens) Refresh(ctx context.Context, cfg *tenant.Config) (string, error) {
	s.refreshCalls++
	return s.refreshed, s.refreshErr
}

type stubStore struct {
	tenant.Store

	active    *tenant.Config
	activeErr error
	byID      *tenant.Config
	byIDErr   error
}

func (s *stubStore) LoadActive(ctx context.Context) (*tenant.Config, error) {
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	cp := *s.active
	return &cp, nil
}

func (s *stubStore) LoadByID(ctx context.Context, id string) (*tenant.Config, error) {
	if s.byIDErr != nil {
		return nil, s.byIDErr
	}
	cp := *s.byID
	return &cp, nil
}

type captureJournal struct {
	entries []journal.Entry
}

func (c *captureJournal) Record(ctx context.Context, entry journal.Entry) {
	c.entries = append(c.entries, entry)
}

func activeConfig() *tenant.Config {
	return &tenant.Config{
		ID:           "cfg-1",
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookURL:   "https://hooks.example.com/inbound",
		IsActive:     true,
		Version:      1,
	}
}

func newTestProcessor(store tenant.Store, tokens TokenProvider, sender crmapi.Sender, rec journal.Recorder) *Processor {
	p := NewProcessor(Deps{
		Store:         store,
		Tokens:        tokens,
		Transformer:   transform.New(logger.NopLogger()),
		Client:        sender,
		Endpoints:     crmapi.NewEndpoints("https://api.example.com/v1"),
		Journal:       rec,
		Logger:        logger.NopLogger(),
		CustomerRetry: config.FamilyRetryConfig{MaxRetries: 1, RetryDelaySeconds: 1},
		WebhookRetry:  config.FamilyRetryConfig{MaxRetries: 3, RetryDelaySeconds: 5},
	})
	p.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })
	return p
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleCartEndToEnd(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{{Status: 200, Body: []byte(`{}`)}}}
	tokens := &stubTokens{token: "cached-token"}
	rec := &captureJournal{}
	p := newTestProcessor(&stubStore{active: activeConfig()}, tokens, sender, rec)

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"quote": map[string]interface{}{
			"currency":         "INR",
			"platform_cart_id": "Q1",
			"total_price":      500,
		},
		"items": []interface{}{
			map[string]interface{}{
				"platform_cart_item_id": "I1",
				"price":                 500,
				"product_id":            "P1",
				"quantity":              1,
			},
		},
		"customer": map[string]interface{}{
			"platform_customer_id": "C1",
			"email":                "a@b.com",
		},
	})}

	err := p.HandleCart(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, sender.requests, 1)
	req := sender.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.example.com/v1/cart", req.URL)
	assert.Equal(t, "cached-token", req.Headers["Authorization"])

	payload, ok := req.Body.(*transform.CartPayload)
	require.True(t, ok)
	assert.Equal(t, "Q1", payload.Cart.PlatformCartID)
	require.Len(t, payload.CartItems, 1)
	assert.Equal(t, "I1", payload.CartItems[0].PlatformCartItemID)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.OutcomeDelivered, rec.entries[0].Outcome)
}

func TestHandleCartWrappedStatus(t *testing.T) {
	// transport 400 but the body carries a wrapped 201
	sender := &scriptedSender{responses: []*crmapi.Response{{Status: 400, Body: []byte(`{"status": 201}`)}}}
	p := newTestProcessor(&stubStore{active: activeConfig()}, &stubTokens{token: "tok"}, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"quote":    map[string]interface{}{"platform_cart_id": "Q1"},
		"items":    []interface{}{map[string]interface{}{"platform_cart_item_id": "I1"}},
		"customer": map[string]interface{}{},
	})}

	require.NoError(t, p.HandleCart(context.Background(), msg))
}

func TestHandleCartUndecodableDropped(t *testing.T) {
	sender := &scriptedSender{}
	rec := &captureJournal{}
	p := newTestProcessor(&stubStore{active: activeConfig()}, &stubTokens{token: "tok"}, sender, rec)

	err := p.HandleCart(context.Background(), broker.Message{Value: []byte("not json")})
	require.NoError(t, err, "undecodable messages are dropped, not failed")
	assert.Empty(t, sender.requests)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.OutcomeDropped, rec.entries[0].Outcome)
}

func TestHandleCartNoActiveConfig(t *testing.T) {
	sender := &scriptedSender{}
	store := &stubStore{activeErr: pkgerrors.ErrConfig.WithMessage("no active webhook configuration")}
	p := newTestProcessor(store, &stubTokens{token: "tok"}, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"quote":    map[string]interface{}{"platform_cart_id": "Q1"},
		"items":    []interface{}{map[string]interface{}{"platform_cart_item_id": "I1"}},
		"customer": map[string]interface{}{},
	})}

	require.NoError(t, p.HandleCart(context.Background(), msg))
	assert.Empty(t, sender.requests, "config failure must short-circuit before any network call")
}

func customerMessage(t *testing.T) broker.Message {
	return broker.Message{Value: mustJSON(t, map[string]interface{}{
		"platform_customer_id": "C1",
		"email":                "a@b.com",
		"first_name":           "Asha",
	})}
}

func TestHandleCustomerAuthRetry(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{
		{Status: 401, Body: []byte(`{}`)},
		{Status: 200, Body: []byte(`{}`)},
	}}
	tokens := &stubTokens{token: "stale", refreshed: "fresh"}
	rec := &captureJournal{}
	p := newTestProcessor(&stubStore{active: activeConfig()}, tokens, sender, rec)

	err := p.HandleCustomer(context.Background(), customerMessage(t))
	require.NoError(t, err)

	assert.Equal(t, 1, tokens.refreshCalls, "401 must force exactly one refresh")
	require.Len(t, sender.requests, 2)
	assert.Equal(t, "stale", sender.requests[0].Headers["Authorization"])
	assert.Equal(t, "fresh", sender.requests[1].Headers["Authorization"])

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.OutcomeDelivered, rec.entries[0].Outcome)
	assert.Equal(t, 2, rec.entries[0].Attempts)
}

func TestHandleCustomerRetriesThenFails(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{
		{Status: 500, Body: []byte(`{}`)},
		{Status: 500, Body: []byte(`{}`)},
	}}
	var delays []time.Duration
	rec := &captureJournal{}
	p := newTestProcessor(&stubStore{active: activeConfig()}, &stubTokens{token: "tok"}, sender, rec)
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	err := p.HandleCustomer(context.Background(), customerMessage(t))
	require.Error(t, err, "exhausted retries propagate so the broker can DLQ the message")
	assert.True(t, pkgerrors.IsTransport(err))

	// budget is first attempt plus one retry, with a linearly scaled delay
	assert.Len(t, sender.requests, 2)
	assert.Equal(t, []time.Duration{1 * time.Second}, delays)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.OutcomeFailed, rec.entries[0].Outcome)
}

func TestHandleCustomerValidationDropped(t *testing.T) {
	sender := &scriptedSender{}
	p := newTestProcessor(&stubStore{active: activeConfig()}, &stubTokens{token: "tok"}, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"platform_customer_id": "C1",
	})}

	require.NoError(t, p.HandleCustomer(context.Background(), msg))
	assert.Empty(t, sender.requests)
}

func TestHandleOrderCreatePostsFullPayload(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{{Status: 201, Body: []byte(`{}`)}}}
	p := newTestProcessor(&stubStore{active: activeConfig()}, &stubTokens{token: "tok"}, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"order": map[string]interface{}{
			"increment_id": "100000123",
			"status":       "Complete",
			"state":        "complete",
		},
		"items": []interface{}{
			map[string]interface{}{"item_id": "li-1", "price": 10},
		},
	})}

	require.NoError(t, p.HandleOrder(context.Background(), msg))

	require.Len(t, sender.requests, 1)
	assert.Equal(t, http.MethodPost, sender.requests[0].Method)
	assert.Equal(t, "https://api.example.com/v1/order", sender.requests[0].URL)

	payload, ok := sender.requests[0].Body.(*transform.OrderPayload)
	require.True(t, ok)
	assert.Equal(t, "completed", payload.Order.Status)
}

func TestHandleOrderUpdateUsesPatch(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{{Status: 200, Body: []byte(`{}`)}}}
	p := newTestProcessor(&stubStore{active: activeConfig()}, &stubTokens{token: "tok"}, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"order": map[string]interface{}{
			"increment_id": "100000123",
			"state":        "canceled",
		},
		"items": []interface{}{
			map[string]interface{}{"item_id": "li-1"},
		},
		"is_update": true,
	})}

	require.NoError(t, p.HandleOrder(context.Background(), msg))

	require.Len(t, sender.requests, 1)
	assert.Equal(t, http.MethodPatch, sender.requests[0].Method)

	order, ok := sender.requests[0].Body.(*transform.Order)
	require.True(t, ok)
	assert.Equal(t, "cancelled", order.Status)
}

func TestHandleWebhookMissingEventType(t *testing.T) {
	sender := &scriptedSender{}
	tokens := &stubTokens{token: "tok"}
	p := newTestProcessor(&stubStore{byID: activeConfig()}, tokens, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"config_id": "cfg-1",
		"payload":   map[string]interface{}{"a": 1},
	})}

	require.NoError(t, p.HandleWebhook(context.Background(), msg))
	assert.Empty(t, sender.requests, "invalid envelope must not reach the network")
	assert.Equal(t, 0, tokens.tokenCalls)
}

func TestHandleWebhookDelivers(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{{Status: 200, Body: []byte(`{}`)}}}
	p := newTestProcessor(&stubStore{byID: activeConfig()}, &stubTokens{token: "tok"}, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"config_id":  "cfg-1",
		"event_type": "order.created",
		"payload":    map[string]interface{}{"a": 1},
	})}

	require.NoError(t, p.HandleWebhook(context.Background(), msg))

	require.Len(t, sender.requests, 1)
	req := sender.requests[0]
	assert.Equal(t, "https://hooks.example.com/inbound", req.URL)
	assert.Equal(t, "order.created", req.Headers["X-Webhook-Event"])
	assert.Equal(t, "tok", req.Headers["Authorization"])
}

func TestHandleWebhookRetriesFixedDelay(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{
		{Status: 502, Body: []byte(`{}`)},
		{Status: 502, Body: []byte(`{}`)},
		{Status: 200, Body: []byte(`{}`)},
	}}
	var delays []time.Duration
	p := newTestProcessor(&stubStore{byID: activeConfig()}, &stubTokens{token: "tok"}, sender, &captureJournal{})
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"config_id":  "cfg-1",
		"event_type": "order.created",
		"payload":    map[string]interface{}{},
	})}

	require.NoError(t, p.HandleWebhook(context.Background(), msg))
	assert.Len(t, sender.requests, 3)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, delays)
}

func TestHandleWebhookTokenRetryExhausted(t *testing.T) {
	sender := &scriptedSender{}
	tokens := &stubTokens{tokenErr: pkgerrors.ErrAuth.WithMessage("token endpoint returned non-success status")}
	var delays []time.Duration
	rec := &captureJournal{}
	p := newTestProcessor(&stubStore{byID: activeConfig()}, tokens, sender, rec)
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"config_id":  "cfg-1",
		"event_type": "order.created",
		"payload":    map[string]interface{}{},
	})}

	err := p.HandleWebhook(context.Background(), msg)
	require.Error(t, err, "auth exhaustion propagates so the broker can DLQ the message")
	assert.True(t, pkgerrors.IsAuth(err))

	// the token budget is spent before delivery is ever attempted
	assert.Equal(t, 3, tokens.tokenCalls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, delays)
	assert.Empty(t, sender.requests)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.OutcomeFailed, rec.entries[0].Outcome)
}

func TestHandleWebhookTokenRetryRecovers(t *testing.T) {
	sender := &scriptedSender{responses: []*crmapi.Response{{Status: 200, Body: []byte(`{}`)}}}
	tokens := &stubTokens{
		token:     "tok",
		tokenErrs: []error{pkgerrors.ErrAuth.WithMessage("token request failed"), nil},
	}
	var delays []time.Duration
	p := newTestProcessor(&stubStore{byID: activeConfig()}, tokens, sender, &captureJournal{})
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"config_id":  "cfg-1",
		"event_type": "order.created",
		"payload":    map[string]interface{}{},
	})}

	require.NoError(t, p.HandleWebhook(context.Background(), msg))

	// one failed acquisition, one fixed delay, then delivery proceeds
	assert.Equal(t, 2, tokens.tokenCalls)
	assert.Equal(t, []time.Duration{5 * time.Second}, delays)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "tok", sender.requests[0].Headers["Authorization"])
}

func TestHandleWebhookInactiveConfig(t *testing.T) {
	inactive := activeConfig()
	inactive.IsActive = false

	sender := &scriptedSender{}
	p := newTestProcessor(&stubStore{byID: inactive}, &stubTokens{token: "tok"}, sender, &captureJournal{})

	msg := broker.Message{Value: mustJSON(t, map[string]interface{}{
		"config_id":  "cfg-1",
		"event_type": "x",
		"payload":    map[string]interface{}{},
	})}

	require.NoError(t, p.HandleWebhook(context.Background(), msg))
	assert.Empty(t, sender.requests)
}
