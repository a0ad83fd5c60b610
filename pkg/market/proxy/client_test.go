package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitfrost-api/pkg/market"
)

func newTestClient(server *httptest.Server, opts ...Option) *Client {
	base := []Option{
		WithHTTPClient(server.Client()),
		WithRateLimit(1000, 100),
		WithTimeout(2 * time.Second),
	}
	return NewClient(server.URL, append(base, opts...)...)
}

func TestClientSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hyperliquid/symbols", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "xyz", r.URL.Query().Get("dex"))
		writeJSON(w, map[string]interface{}{
			"source":  "live",
			"symbols": []string{"GOLD", "TSLA"},
			"categorized": map[string][]string{
				"commodities": {"GOLD"},
				"stocks":      {"TSLA"},
				"indices":     {},
			},
		})
	}))
	defer server.Close()

	resp, err := newTestClient(server).Symbols(context.Background(), "xyz")
	require.NoError(t, err)
	assert.Equal(t, market.SourceLive, resp.Source)
	assert.Equal(t, []string{"GOLD", "TSLA"}, resp.Symbols)

	cat, ok := resp.Categorized.CategoryOf("GOLD")
	require.True(t, ok)
	assert.Equal(t, market.CategoryCommodities, cat)
	_, ok = resp.Categorized.CategoryOf("SPX")
	assert.False(t, ok)
}

func TestClientSymbolsMockMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"source": "mock", "symbols": []string{}, "errorMessage": "upstream down"})
	}))
	defer server.Close()

	resp, err := newTestClient(server).Symbols(context.Background(), "flx")
	require.NoError(t, err)
	assert.Equal(t, market.SourceMock, resp.Source)
	assert.Equal(t, "upstream down", resp.ErrorMessage)
}

func TestClientAssetDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custom/asset-details", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "km", r.URL.Query().Get("dex"))
		var body struct {
			Symbols []string `json:"symbols"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"GOLD", "SILVER"}, body.Symbols)
		writeJSON(w, map[string]interface{}{"details": map[string]interface{}{
			"GOLD":   map[string]interface{}{"price": 5000, "volume24hUsd": "1200000.5", "openInterestUsd": 3e6, "change24hPercent": -1.5, "dataSourceKind": "live"},
			"SILVER": map[string]interface{}{"price": "99", "volume24hUsd": nil, "dataSourceKind": "live"},
		}})
	}))
	defer server.Close()

	details, err := newTestClient(server, WithProvider("/custom/")).AssetDetails(context.Background(), "km", []string{"GOLD", "SILVER"})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.InDelta(t, 5000.0, details["GOLD"].Price.Float(), 1e-9)
	assert.InDelta(t, 1200000.5, details["GOLD"].Volume24hUSD.Float(), 1e-9)
	assert.InDelta(t, -1.5, details["GOLD"].Change24hPercent.Float(), 1e-9)
	assert.InDelta(t, 99.0, details["SILVER"].Price.Float(), 1e-9)
	assert.Zero(t, details["SILVER"].Volume24hUSD.Float())
}

func TestClientCandlesAndOrderBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hyperliquid/candles":
			q := r.URL.Query()
			assert.Equal(t, "xyz:GOLD", q.Get("symbol"))
			assert.Equal(t, "1h", q.Get("interval"))
			assert.Equal(t, "1700000000000", q.Get("startTime"))
			writeJSON(w, []map[string]interface{}{
				{"t": 1, "o": 1, "h": "3", "l": 0.5, "c": 2, "v": 10},
			})
		case "/hyperliquid/orderbook":
			writeJSON(w, map[string]interface{}{"levels": [][]map[string]interface{}{
				{{"px": "4999", "sz": "1"}},
				{{"px": 5001, "sz": 2}},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	start := time.UnixMilli(1_700_000_000_000)
	candles, err := client.Candles(context.Background(), "xyz:GOLD", "xyz", "1h", start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, market.Candle{OpenTime: 1, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 10}, candles[0])

	book, err := client.OrderBook(context.Background(), "xyz:GOLD", "xyz")
	require.NoError(t, err)
	bid, ask, ok := book.Top()
	require.True(t, ok)
	assert.InDelta(t, 4999.0, bid, 1e-9)
	assert.InDelta(t, 5001.0, ask, 1e-9)
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    market.ErrorKind
	}{
		{
			name:    "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusBadGateway) },
			kind:    market.KindUpstreamUnavailable,
		},
		{
			name:    "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{")) },
			kind:    market.KindMalformedResponse,
		},
		{
			name: "wrong book shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]interface{}{"levels": [][]interface{}{{}}})
			},
			kind: market.KindMalformedResponse,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
				writeJSON(w, map[string]interface{}{"levels": [][]interface{}{{}, {}}})
			},
			kind: market.KindUpstreamUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestClient(server, WithTimeout(100*time.Millisecond)).OrderBook(context.Background(), "GOLD", "xyz")
			require.Error(t, err)
			assert.Equal(t, tt.kind, market.KindOf(err))
		})
	}
}

func TestClientMissingBaseURL(t *testing.T) {
	_, err := NewClient("").Symbols(context.Background(), "xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrUpstreamUnavailable))
}

func TestClientBreakerPerDex(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("dex") == "bad" {
			calls.Add(1)
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]interface{}{"source": "live", "symbols": []string{"GOLD"}})
	}))
	defer server.Close()

	client := newTestClient(server, WithBreaker(time.Minute, 2))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := client.Symbols(ctx, "bad")
		require.Error(t, err)
		assert.True(t, errors.Is(err, market.ErrUpstreamUnavailable))
	}
	assert.Equal(t, int32(2), calls.Load(), "open breaker must short-circuit")
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState("bad", "symbols"))

	resp, err := client.Symbols(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, []string{"GOLD"}, resp.Symbols)
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState("good", "symbols"))
}

func TestClientBreakerPerEndpoint(t *testing.T) {
	var bookCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hyperliquid/orderbook":
			bookCalls.Add(1)
			http.Error(w, "upstream down", http.StatusBadGateway)
		case "/hyperliquid/symbols":
			writeJSON(w, map[string]interface{}{"source": "live", "symbols": []string{"xyz:GOLD"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(server, WithBreaker(time.Minute, 2))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.OrderBook(ctx, "xyz:DELISTED", "xyz")
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), bookCalls.Load())
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState("xyz", "orderbook"))

	resp, err := client.Symbols(ctx, "xyz")
	require.NoError(t, err)
	assert.Equal(t, []string{"xyz:GOLD"}, resp.Symbols)
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState("xyz", "symbols"))
}

func TestClientBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown symbol", http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server, WithBreaker(time.Minute, 2))
	for i := 0; i < 5; i++ {
		_, err := client.OrderBook(context.Background(), "xyz:DELISTED", "xyz")
		require.Error(t, err)
		assert.True(t, errors.Is(err, market.ErrUpstreamUnavailable))
	}
	assert.Equal(t, int32(5), calls.Load(), "4xx must not trip the breaker")
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState("xyz", "orderbook"))
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := market.DefaultConfig()
	cfg.Proxy.BaseURL = "https://proxy.example.com/"
	cfg.Proxy.Provider = "hl"
	cfg.Timeout = 3 * time.Second
	client := NewClientFromConfig(cfg)
	assert.Equal(t, "https://proxy.example.com", client.baseURL)
	assert.Equal(t, "hl", client.provider)
	assert.Equal(t, 3*time.Second, client.timeout)
}

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		err  bool
	}{
		{`1.5`, 1.5, false},
		{`"2.25"`, 2.25, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"abc"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		var n Number
		err := json.Unmarshal([]byte(tt.in), &n)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, n.Float(), 1e-12, tt.in)
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
