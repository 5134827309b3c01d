// Package schwab implements the market-data broker adapter for option chains.
package schwab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"vega/internal/adapters/config"
	"vega/internal/domain/chain"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

// Client fetches option chain documents from the broker's market-data API.
// All requests pass through a shared rate limiter sized from configuration.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a broker client from configuration
func NewClient(cfg config.BrokerConfig) *Client {
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	return &Client{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(perSecond, cfg.RequestsPerMinute),
	}
}

// GetOptionChain fetches the full option chain for a symbol
func (c *Client) GetOptionChain(ctx context.Context, symbol string) (*chain.RawChain, error) {
	if symbol == "" {
		return nil, errors.ErrInvalidSymbol
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter wait")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("strategy", "SINGLE")

	endpoint := fmt.Sprintf("%s/chains?%s", c.baseURL, params.Encode())

	start := time.Now()
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var raw chain.RawChain
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "decode option chain")
	}
	if raw.Symbol == "" {
		raw.Symbol = symbol
	}

	logger.Get().Debugw("Fetched option chain",
		"symbol", symbol,
		"contracts", raw.ContractCount(),
		"expirations", raw.Expirations(),
		"duration", time.Since(start),
	)

	return &raw, nil
}

// GetQuote fetches the underlying's last trade price
func (c *Client) GetQuote(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, errors.ErrInvalidSymbol
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(err, "rate limiter wait")
	}

	endpoint := fmt.Sprintf("%s/%s/quotes", c.baseURL, url.PathEscape(symbol))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	var payload map[string]struct {
		Quote struct {
			LastPrice float64 `json:"lastPrice"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, errors.Wrap(err, "decode quote")
	}

	if q, ok := payload[symbol]; ok {
		return q.Quote.LastPrice, nil
	}
	return 0, errors.Wrapf(errors.ErrNotFound, "no quote for %s", symbol)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrBrokerUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.ErrInvalidSymbol
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.ErrRateLimitExceeded
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(errors.ErrBrokerUnavailable, "auth rejected: status %d", resp.StatusCode)
	default:
		return nil, errors.Wrapf(errors.ErrBrokerUnavailable, "unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
