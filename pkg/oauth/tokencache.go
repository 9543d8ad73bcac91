// Package oauth provides OAuth2 client-credentials token acquisition with
// expiry-aware caching, used by carrier API clients that require bearer auth.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tournevent/ratebridge/pkg/transport"
)

const defaultRefreshBuffer = 30 * time.Second

// ErrAuthFailed indicates the token endpoint errored, timed out, or returned
// a payload without an access token. The transport failure is preserved as
// the wrapped cause.
var ErrAuthFailed = errors.New("authentication failed")

// Config holds token cache configuration.
type Config struct {
	TokenPath     string // e.g. "/security/v1/oauth/token"
	ClientID      string
	ClientSecret  string
	RefreshBuffer time.Duration // subtracted from expires_in at cache time
}

// TokenCache caches one bearer token for one client id/secret pair against
// one token endpoint. Refresh-or-reuse decisions are serialized; concurrent
// callers never trigger duplicate exchanges or observe a half-written entry.
type TokenCache struct {
	httpClient    *transport.Client
	tokenPath     string
	clientID      string
	clientSecret  string
	refreshBuffer time.Duration
	now           func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Option configures a TokenCache.
type Option func(*TokenCache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *TokenCache) {
		t.now = now
	}
}

// New creates a token cache bound to one transport client and credential pair.
func New(httpClient *transport.Client, cfg Config, opts ...Option) *TokenCache {
	buffer := cfg.RefreshBuffer
	if buffer <= 0 {
		buffer = defaultRefreshBuffer
	}
	tc := &TokenCache{
		httpClient:    httpClient,
		tokenPath:     cfg.TokenPath,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		refreshBuffer: buffer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

type tokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   expirySeconds `json:"expires_in"`
}

// expirySeconds tolerates both a bare number and a quoted string; UPS quotes
// the value, most other OAuth2 servers do not.
type expirySeconds int64

func (s *expirySeconds) UnmarshalJSON(data []byte) error {
	trimmed := bytes.Trim(data, `"`)
	n, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in value %q: %w", data, err)
	}
	*s = expirySeconds(n)
	return nil
}

// Token returns a valid bearer token, reusing the cached one while its
// buffer-adjusted expiry is still in the future. Otherwise it performs a
// fresh client-credentials exchange and caches the result.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.token != "" && now.Before(t.expiresAt) {
		return t.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	resp, err := t.httpClient.PostForm(ctx, t.tokenPath, form,
		transport.WithBasicAuth(t.clientID, t.clientSecret))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return "", fmt.Errorf("%w: failed to decode token response: %w", ErrAuthFailed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", ErrAuthFailed)
	}

	t.token = tok.AccessToken
	t.expiresAt = now.Add(time.Duration(tok.ExpiresIn)*time.Second - t.refreshBuffer)
	return t.token, nil
}

// Clear invalidates the cached token, forcing the next Token call to
// re-fetch.
func (t *TokenCache) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.expiresAt = time.Time{}
}
