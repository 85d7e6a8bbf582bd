// Package client is a typed HTTP client for the groupgate API. Error
// responses come back as *APIError, which unwraps to the matching groups
// error kind so callers can use errors.Is(err, groups.ErrForbidden) and
// friends on either side of the wire.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"groupgate.org/internal/authn"
	"groupgate.org/internal/groups"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("groupgate: %d %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("groupgate: %d %s", e.Status, e.Message)
}

// Unwrap maps the status back to an error kind.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return authn.ErrUnauthenticated
	case http.StatusForbidden:
		return groups.ErrForbidden
	case http.StatusNotFound:
		return groups.ErrNotFound
	case http.StatusConflict:
		return groups.ErrConflict
	case http.StatusBadRequest:
		return groups.ErrInvalidInput
	}
	return nil
}

type Client struct {
	http  *resty.Client
	token string
}

type Option func(*resty.Client)

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *resty.Client) {
		if hc.Transport != nil {
			c.SetTransport(hc.Transport)
		}
		if hc.Timeout > 0 {
			c.SetTimeout(hc.Timeout)
		}
	}
}

// WithRetries retries 429 and 503 responses for any method. Transport
// failures are retried for GET and HEAD only; a write may already have
// committed when the connection broke.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(n).
			SetRetryWaitTime(wait).
			AddRetryCondition(shouldRetry)
	}
}

func shouldRetry(r *resty.Response, err error) bool {
	if err != nil {
		return r != nil && r.Request != nil && isSafeMethod(r.Request.Method)
	}
	if r == nil {
		return false
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() == http.StatusServiceUnavailable
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}, nil
}

// As returns a client that authenticates with token. The underlying
// connection pool is shared.
func (c *Client) As(token string) *Client {
	return &Client{http: c.http, token: token}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx).SetError(&APIError{})
	if c.token != "" {
		r.SetAuthToken(c.token)
	}
	return r
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	r := c.request(ctx)
	if body != nil {
		r.SetBody(body)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*APIError)
		if apiErr == nil || apiErr.Message == "" {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode())}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

func groupPath(groupID string, rest ...string) string {
	p := "/v1/groups/" + url.PathEscape(groupID)
	for _, seg := range rest {
		p += "/" + url.PathEscape(seg)
	}
	return p
}

// Health is the /healthz payload.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &h)
	return h, err
}

// Ready reports nil when the server can reach its store.
func (c *Client) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
