package crmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"relay/internal/constants"
	"relay/pkg/circuitbreaker"
	pkgerrors "relay/pkg/errors"
)

// Response is a delivered HTTP exchange. Any status code is a Response;
// only a failure to complete the exchange at all is an error.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= constants.HTTPStatusOKMin && r.Status < constants.HTTPStatusOKMax
}

// WrappedStatus returns the numeric "status" field some endpoints embed in
// their JSON body, or the transport status when the body carries none.
func (r *Response) WrappedStatus() int {
	var body struct {
		Status *int `json:"status"`
	}
	if err := json.Unmarshal(r.Body, &body); err == nil && body.Status != nil {
		return *body.Status
	}
	return r.Status
}

type Sender interface {
	Send(ctx context.Context, method, url string, headers map[string]string, body interface{}) (*Response, error)
}

type Client struct {
	client  *http.Client
	breaker *circuitbreaker.Wrapper
}

type Option func(*Client)

func WithBreaker(breaker *circuitbreaker.Wrapper) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	c := &Client{
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs one HTTP exchange. A nil body sends no payload; otherwise
// body is JSON-encoded. Non-2xx statuses are returned as responses, not
// errors, so callers can apply their own retry classification.
func (c *Client) Send(ctx context.Context, method, url string, headers map[string]string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.ErrTransform.WithCause(err).WithMessage("failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err).WithMessage("failed to create request")
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if c.breaker != nil {
		result, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
			return c.do(req)
		})
		if err != nil {
			return nil, c.classifyTransport(err)
		}
		return result.(*Response), nil
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, c.classifyTransport(err)
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{Status: resp.StatusCode, Body: payload}, nil
}

func (c *Client) classifyTransport(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.ErrTransport.WithCause(err).WithMessage("circuit breaker open")
	}
	return pkgerrors.ErrTransport.WithCause(err)
}
