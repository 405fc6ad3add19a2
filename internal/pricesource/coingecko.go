// Package pricesource fetches current spot prices from the upstream price API.
package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdevan/crypto-dashboard-backend/internal/alerts"
)

// DefaultBaseURL is the public CoinGecko API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// PriceMap maps asset id -> currency code -> spot price.
type PriceMap map[string]map[string]float64

// Source returns current prices for a set of assets in one currency. Any
// upstream failure is reported uniformly as alerts.ErrUpstreamUnavailable.
type Source interface {
	Fetch(ctx context.Context, assets []string, currency string) (PriceMap, error)
}

// Client calls the CoinGecko simple/price endpoint. One Fetch is one logical
// attempt; retries, if any, belong to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a price API client. An empty baseURL selects the public
// CoinGecko endpoint.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With().Str("component", "price-client").Logger(),
	}
}

// Fetch returns current prices for the assets. The payload is validated:
// a missing asset, non-finite, or negative price counts as a malformed
// response and maps to ErrUpstreamUnavailable like every other failure.
func (c *Client) Fetch(ctx context.Context, assets []string, currency string) (PriceMap, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(assets, ","))
	params.Set("vs_currencies", currency)
	fetchURL := c.baseURL + "/simple/price?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", alerts.ErrUpstreamUnavailable, err)
	}

	c.logger.Debug().Str("url", fetchURL).Msg("fetching prices")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %v", alerts.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", alerts.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var prices PriceMap
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", alerts.ErrUpstreamUnavailable, err)
	}

	for _, asset := range assets {
		price, ok := prices[asset][currency]
		if !ok {
			return nil, fmt.Errorf("%w: no %s price for %s", alerts.ErrUpstreamUnavailable, currency, asset)
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			return nil, fmt.Errorf("%w: invalid price %v for %s", alerts.ErrUpstreamUnavailable, price, asset)
		}
	}

	c.logger.Debug().Int("assets", len(prices)).Msg("fetched prices")
	return prices, nil
}
