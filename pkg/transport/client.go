// Package transport provides generic HTTP request execution with timeout,
// selective retry with exponential backoff, and structured error
// classification. Every carrier API client and the OAuth token cache run
// their requests through it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 250 * time.Millisecond
)

// Config holds transport client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Headers        map[string]string // default headers applied to every request
	RetryAttempts  int               // total attempts, not extra retries
	RetryBaseDelay time.Duration     // first retry delay; doubles each attempt
}

// Client executes HTTP requests against one base endpoint. Credentials are
// per-request options, never client state, so one instance is safe for
// concurrent reuse across callers with different tokens.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	headers        map[string]string
	retryAttempts  int
	retryBaseDelay time.Duration
}

// New creates a new transport client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		headers:        headers,
		retryAttempts:  attempts,
		retryBaseDelay: baseDelay,
	}
}

// Response is the successful result of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestOption mutates a single outgoing request.
type RequestOption func(*http.Request)

// WithBearerToken sets the Authorization header to a bearer token for this
// request only.
func WithBearerToken(token string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// WithBasicAuth sets HTTP Basic credentials for this request only.
func WithBasicAuth(username, password string) RequestOption {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

// WithHeader sets an arbitrary header for this request only.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, "", nil, opts)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Cause: fmt.Errorf("failed to marshal request body: %w", err)}
	}
	return c.do(ctx, http.MethodPost, path, "application/json", payload, opts)
}

// PostForm performs a POST request with a form-encoded body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", []byte(form.Encode()), opts)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Cause: fmt.Errorf("failed to marshal request body: %w", err)}
	}
	return c.do(ctx, http.MethodPut, path, "application/json", payload, opts)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, "", nil, opts)
}

// do runs one request with retries. Only TIMEOUT, NETWORK_ERROR, HTTP_429 and
// HTTP 5xx failures are retried; retry delay is baseDelay * 2^(attempt-1)
// with no jitter.
func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte, opts []RequestOption) (*Response, error) {
	operation := func() (*Response, error) {
		resp, err := c.attempt(ctx, method, path, contentType, payload, opts)
		if err != nil {
			var terr *Error
			if errors.As(err, &terr) && !terr.Retryable() {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Minute

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.retryAttempts)),
	)
	if err != nil {
		var terr *Error
		if errors.As(err, &terr) {
			return nil, terr
		}
		// Unreachable in correct operation; exists so no raw error ever
		// escapes unclassified.
		return nil, &Error{Code: CodeUnknown, Cause: err}
	}
	return resp, nil
}

// attempt performs a single request and classifies any failure.
func (c *Client) attempt(ctx context.Context, method, path, contentType string, payload []byte, opts []RequestOption) (*Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Cause: err}
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyNetError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: CodeNetworkError, StatusCode: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			Code:       codeForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// classifyNetError maps a native transport failure into the taxonomy.
func classifyNetError(err error) *Error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Code: CodeConnectionRefused, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Code: CodeTimeout, Cause: err}
	}
	return &Error{Code: CodeNetworkError, Cause: err}
}
