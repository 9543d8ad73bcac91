package ups

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tournevent/ratebridge/pkg/oauth"
	"github.com/tournevent/ratebridge/pkg/transport"
)

const (
	tokenPath     = "/security/v1/oauth/token"
	shopRatesPath = "/rating/v2/shop/rates"
)

// HTTPAPIClient is the production implementation of APIClient. It runs every
// request through the shared transport client and acquires bearer tokens from
// the OAuth token cache.
type HTTPAPIClient struct {
	httpClient *transport.Client
	tokens     *oauth.TokenCache
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RefreshBuffer  time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	httpClient := transport.New(transport.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
	})
	tokens := oauth.New(httpClient, oauth.Config{
		TokenPath:     tokenPath,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RefreshBuffer: cfg.RefreshBuffer,
	})
	return &HTTPAPIClient{httpClient: httpClient, tokens: tokens}
}

// NewHTTPAPIClientWithTransport wires a prebuilt transport client and token
// cache. Used by tests running against httptest servers.
func NewHTTPAPIClientWithTransport(httpClient *transport.Client, tokens *oauth.TokenCache) *HTTPAPIClient {
	return &HTTPAPIClient{httpClient: httpClient, tokens: tokens}
}

// ShopRates fetches all available service rates from the UPS Rating API.
func (c *HTTPAPIClient) ShopRates(ctx context.Context, req *RateRequestWrapper) (*RateResponseWrapper, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(ctx, shopRatesPath, req, transport.WithBearerToken(token))
	if err != nil {
		return nil, err
	}

	var wrapper RateResponseWrapper
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return &wrapper, nil
}

// ClearTokens drops the cached bearer token, forcing a fresh exchange on the
// next request.
func (c *HTTPAPIClient) ClearTokens() {
	c.tokens.Clear()
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
