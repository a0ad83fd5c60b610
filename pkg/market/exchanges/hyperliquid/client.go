package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/pkg/market"
)

const (
	defaultBaseURL          = market.DefaultInfoURL
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond
	sourceName              = "hyperliquid"
)

// Client wraps access to the Hyperliquid info endpoint.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	backoffBase time.Duration
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default info endpoint URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithMaxRetries adjusts the retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithRetryBackoff sets the first retry delay; it doubles on every attempt.
func WithRetryBackoff(base time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
	}
}

// NewClient constructs a Hyperliquid API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  httpClient,
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultRetryBackoffBase,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	return client
}

// NewClientFromConfig builds a client from the market section.
func NewClientFromConfig(cfg *market.Config, opts ...Option) *Client {
	if cfg == nil {
		return NewClient(opts...)
	}
	base := []Option{
		WithBaseURL(cfg.InfoURL),
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		WithMaxRetries(cfg.MaxRetries),
	}
	return NewClient(append(base, opts...)...)
}

// doRequest posts an InfoRequest and decodes the response into result. Transport
// failures and non-2xx statuses are retried and surface as UpstreamUnavailable;
// undecodable bodies surface as MalformedUpstreamResponse without retry.
func (c *Client) doRequest(ctx context.Context, req InfoRequest, result interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("hyperliquid: encode request: %w", err)
	}
	var lastErr error
	backoff := c.backoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("hyperliquid: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return market.Unavailable(sourceName, ctx.Err())
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("hyperliquid: read response: %w", readErr)
			} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("hyperliquid: http status %d: %s", resp.StatusCode, string(body))
			} else {
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return market.Malformed(sourceName, fmt.Errorf("hyperliquid: decode %s response: %w", req.Type, err))
					}
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			logx.WithContext(ctx).Debugf("hyperliquid: retry type=%s attempt=%d err=%v", req.Type, attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return market.Unavailable(sourceName, ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
			continue
		}
	}
	if lastErr == nil {
		lastErr = errors.New("hyperliquid: request failed without error detail")
	}
	return market.Unavailable(sourceName, lastErr)
}
