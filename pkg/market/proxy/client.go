// Package proxy talks to the serverless proxy that fronts the HIP-3 DEX REST
// endpoints. Every call is rate limited, bounded by a timeout and guarded by a
// circuit breaker per DEX and endpoint; failures come back as typed market errors.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"bitfrost-api/pkg/market"
)

const (
	defaultTimeout  = 8 * time.Second
	defaultProvider = "hyperliquid"
	maxErrorBody    = 512
)

// Client calls the proxy REST endpoints under <baseURL>/<provider>/.
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	breakers   *breakers
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithProvider sets the provider path segment.
func WithProvider(provider string) Option {
	return func(c *Client) {
		if provider = strings.Trim(strings.TrimSpace(provider), "/"); provider != "" {
			c.provider = provider
		}
	}
}

// WithTimeout bounds every call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps the request rate to the proxy host.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithBreaker tunes the breakers: open after trip consecutive failures,
// half-open again after timeout.
func WithBreaker(timeout time.Duration, trip uint32) Option {
	return func(c *Client) {
		c.breakers = newBreakers(timeout, trip)
	}
}

// NewClient builds a proxy client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		provider:   defaultProvider,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		timeout:    defaultTimeout,
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
		breakers:   newBreakers(30*time.Second, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client from the market section.
func NewClientFromConfig(cfg *market.Config, opts ...Option) *Client {
	base := []Option{
		WithProvider(cfg.Proxy.Provider),
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		WithTimeout(cfg.Timeout),
		WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		WithBreaker(cfg.BreakerTimeout, 5),
	}
	return NewClient(cfg.Proxy.BaseURL, append(base, opts...)...)
}

// Symbols fetches the tradable-symbol inventory of dex.
func (c *Client) Symbols(ctx context.Context, dex string) (SymbolsResponse, error) {
	var resp SymbolsResponse
	q := url.Values{"dex": {dex}}
	if err := c.call(ctx, dex, http.MethodGet, "symbols", q, nil, &resp); err != nil {
		return SymbolsResponse{}, err
	}
	if resp.Source == "" {
		resp.Source = market.SourceLive
	}
	return resp, nil
}

// AssetDetails fetches market fields for symbols on dex in one batch.
func (c *Client) AssetDetails(ctx context.Context, dex string, symbols []string) (map[string]AssetDetail, error) {
	var resp AssetDetailsResponse
	q := url.Values{"dex": {dex}}
	body := struct {
		Symbols []string `json:"symbols"`
	}{Symbols: symbols}
	if err := c.call(ctx, dex, http.MethodPost, "asset-details", q, body, &resp); err != nil {
		return nil, err
	}
	if resp.Details == nil {
		return nil, market.Malformed(dex, errors.New("proxy: asset-details missing details"))
	}
	return resp.Details, nil
}

// Candles fetches bars for symbol on dex in [start, end], oldest first.
func (c *Client) Candles(ctx context.Context, symbol, dex, interval string, start, end time.Time) ([]market.Candle, error) {
	var wire []candleWire
	q := url.Values{
		"symbol":    {symbol},
		"dex":       {dex},
		"interval":  {interval},
		"startTime": {strconv.FormatInt(start.UnixMilli(), 10)},
		"endTime":   {strconv.FormatInt(end.UnixMilli(), 10)},
	}
	if err := c.call(ctx, dex, http.MethodGet, "candles", q, nil, &wire); err != nil {
		return nil, err
	}
	candles := make([]market.Candle, 0, len(wire))
	for _, w := range wire {
		candles = append(candles, market.Candle{
			OpenTime: w.T,
			Open:     w.O.Float(),
			High:     w.H.Float(),
			Low:      w.L.Float(),
			Close:    w.C.Float(),
			Volume:   w.V.Float(),
		})
	}
	return candles, nil
}

// OrderBook fetches the book of symbol on dex.
func (c *Client) OrderBook(ctx context.Context, symbol, dex string) (market.OrderBook, error) {
	var resp orderBookResponse
	q := url.Values{"symbol": {symbol}, "dex": {dex}}
	if err := c.call(ctx, dex, http.MethodGet, "orderbook", q, nil, &resp); err != nil {
		return market.OrderBook{}, err
	}
	if len(resp.Levels) != 2 {
		return market.OrderBook{}, market.Malformed(dex, fmt.Errorf("proxy: orderbook expected 2 sides, got %d", len(resp.Levels)))
	}
	book := market.OrderBook{
		Bids:   make([]market.BookLevel, 0, len(resp.Levels[0])),
		Asks:   make([]market.BookLevel, 0, len(resp.Levels[1])),
		Source: market.SourceLive,
	}
	for _, lvl := range resp.Levels[0] {
		book.Bids = append(book.Bids, market.BookLevel{Price: lvl.Px.Float(), Size: lvl.Sz.Float()})
	}
	for _, lvl := range resp.Levels[1] {
		book.Asks = append(book.Asks, market.BookLevel{Price: lvl.Px.Float(), Size: lvl.Sz.Float()})
	}
	return book, nil
}

// BreakerState exposes the breaker state for endpoint on dex.
func (c *Client) BreakerState(dex, endpoint string) gobreaker.State {
	return c.breakers.state(breakerKey(dex, endpoint))
}

func (c *Client) call(ctx context.Context, dex, method, endpoint string, query url.Values, body, out interface{}) error {
	source := dex
	if source == "" {
		source = endpoint
	}
	if c.baseURL == "" {
		return market.Unavailable(source, errors.New("proxy: base url not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return market.Unavailable(source, fmt.Errorf("proxy: rate limit %s: %w", endpoint, err))
	}

	raw, err := c.breakers.get(breakerKey(dex, endpoint)).Execute(func() (interface{}, error) {
		return c.do(ctx, method, endpoint, query, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return market.Unavailable(source, fmt.Errorf("proxy: %s: %w", endpoint, err))
		}
		return market.Unavailable(source, err)
	}

	if err := json.Unmarshal(raw.([]byte), out); err != nil {
		return market.Malformed(source, fmt.Errorf("proxy: decode %s: %w", endpoint, err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body interface{}) ([]byte, error) {
	target := fmt.Sprintf("%s/%s/%s", c.baseURL, c.provider, endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("proxy: encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("proxy: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("proxy: read %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &statusError{endpoint: endpoint, code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
