package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitfrost-api/pkg/market"
)

func TestClientMetaAndAssetCtxs(t *testing.T) {
	server, client, seen := newMockHyperliquidServer(t)
	defer server.Close()

	meta, err := client.MetaAndAssetCtxs(context.Background(), "xyz")
	require.NoError(t, err)
	require.Len(t, meta.Universe, 2)
	assert.Equal(t, "xyz", seen.last().Dex)

	entry, assetCtx, found, err := meta.Lookup("XYZ:gold")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "xyz:GOLD", entry.Name)

	metrics, err := assetCtx.Metrics()
	require.NoError(t, err)
	assert.InDelta(t, 5000.5, metrics.MarkPx, 1e-9)
	assert.InDelta(t, 4999.0, metrics.OraclePx, 1e-9)
	assert.InDelta(t, 0.0000125, metrics.Funding, 1e-12)
	assert.InDelta(t, 12.5, metrics.OpenInterest, 1e-9)
	assert.InDelta(t, 4.0816, metrics.Change24hPercent(), 1e-3)

	_, _, found, err = meta.Lookup("xyz:COPPER")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLookupMisalignedContexts(t *testing.T) {
	meta := &MetaAndAssetCtxsResponse{
		Universe:  []UniverseEntry{{Name: "xyz:SILVER"}, {Name: "xyz:GOLD"}},
		AssetCtxs: []AssetCtx{{MarkPx: "30"}},
	}

	_, assetCtx, found, err := meta.Lookup("xyz:SILVER")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "30", assetCtx.MarkPx)

	_, _, found, err = meta.Lookup("xyz:GOLD")
	require.Error(t, err)
	assert.True(t, found)
	assert.True(t, errors.Is(err, market.ErrMalformedResponse))
}

func TestAssetCtxMetricsErrors(t *testing.T) {
	tests := []struct {
		name        string
		ctx         AssetCtx
		errContains string
	}{
		{"missing mark price", AssetCtx{Funding: "0.0001", MidPx: "100"}, "missing mark price"},
		{"invalid mark", AssetCtx{MarkPx: "abc"}, "parse mark price"},
		{"invalid funding", AssetCtx{MarkPx: "100", Funding: "invalid"}, "parse funding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ctx.Metrics()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}

	metrics, err := AssetCtx{MarkPx: "10"}.Metrics()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, metrics.MidPx, 1e-9, "mid falls back to mark")
	assert.Zero(t, metrics.Change24hPercent())
}

func TestClientMetaAndAssetCtxsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []interface{}{map[string]interface{}{"foo": 1}, []interface{}{}})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()), WithMaxRetries(0))
	_, err := client.MetaAndAssetCtxs(context.Background(), "xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrMalformedResponse))
}

func TestClientCandles(t *testing.T) {
	server, client, seen := newMockHyperliquidServer(t)
	defer server.Close()

	end := time.UnixMilli(1_700_000_000_000 + 24*3_600_000)
	start := end.Add(-24 * time.Hour)
	candles, err := client.Candles(context.Background(), "xyz:GOLD", "1h", start, end)
	require.NoError(t, err)
	require.Len(t, candles, 24)
	assert.True(t, candles[0].OpenTime < candles[len(candles)-1].OpenTime)
	assert.InDelta(t, 4900.0, candles[0].Close, 1e-9)

	req := seen.last()
	params, _ := req.Req.(map[string]interface{})
	assert.Equal(t, "xyz:GOLD", params["coin"])
	assert.Equal(t, "1h", params["interval"])

	_, err = client.Candles(context.Background(), "BTC", "7m", start, end)
	assert.Error(t, err)
	_, err = client.Candles(context.Background(), "BTC", "1h", end, start)
	assert.Error(t, err)
}

func TestClientL2Book(t *testing.T) {
	server, client, _ := newMockHyperliquidServer(t)
	defer server.Close()

	book, err := client.L2Book(context.Background(), "BTC")
	require.NoError(t, err)
	bid, ask, ok := book.Top()
	require.True(t, ok)
	assert.InDelta(t, 99.5, bid, 1e-9)
	assert.InDelta(t, 100.5, ask, 1e-9)
	assert.Equal(t, market.SourceLive, book.Source)
}

func TestL2BookResponseOrderBook(t *testing.T) {
	_, err := L2BookResponse{Levels: [][]L2Level{{}}}.OrderBook()
	assert.True(t, errors.Is(err, market.ErrMalformedResponse))

	_, err = L2BookResponse{Levels: [][]L2Level{{{Px: "x", Sz: "1"}}, {}}}.OrderBook()
	assert.True(t, errors.Is(err, market.ErrMalformedResponse))

	book, err := L2BookResponse{Levels: [][]L2Level{{}, {}}}.OrderBook()
	require.NoError(t, err)
	_, _, ok := book.Top()
	assert.False(t, ok)
}

func TestClientLastPrice(t *testing.T) {
	server, client, _ := newMockHyperliquidServer(t)
	defer server.Close()

	px, err := client.LastPrice(context.Background(), "", "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 101.25, px, 1e-9)

	// no trades for kPEPE, falls back to allMids
	px, err = client.LastPrice(context.Background(), "", "kpepe")
	require.NoError(t, err)
	assert.InDelta(t, 0.00095, px, 1e-12)

	_, err = client.LastPrice(context.Background(), "", "UNKNOWN")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLatestTradePrice(t *testing.T) {
	_, ok := LatestTradePrice(nil)
	assert.False(t, ok)

	px, ok := LatestTradePrice([]Trade{{Px: "1", Time: 3}, {Px: "2", Time: 5}, {Px: "3", Time: 4}})
	require.True(t, ok)
	assert.InDelta(t, 2.0, px, 1e-9)
}

// TestClientDoRequestRetry tests the retry logic in doRequest.
func TestClientDoRequestRetry(t *testing.T) {
	tests := []struct {
		name        string
		setupServer func() *httptest.Server
		maxRetries  int
		timeout     time.Duration
		wantErr     bool
		wantKind    market.ErrorKind
		errContains string
	}{
		{
			name: "successful after retry",
			setupServer: func() *httptest.Server {
				var mu sync.Mutex
				callCount := 0
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					mu.Lock()
					callCount++
					n := callCount
					mu.Unlock()
					if n < 2 {
						w.WriteHeader(http.StatusInternalServerError)
						return
					}
					writeJSON(w, map[string]string{"BTC": "150"})
				}))
			},
			maxRetries: 2,
		},
		{
			name: "fail after max retries",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
				}))
			},
			maxRetries:  1,
			wantErr:     true,
			wantKind:    market.KindUpstreamUnavailable,
			errContains: "http status 502",
		},
		{
			name: "context timeout during retry",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					time.Sleep(200 * time.Millisecond)
					writeJSON(w, map[string]string{})
				}))
			},
			maxRetries:  2,
			timeout:     100 * time.Millisecond,
			wantErr:     true,
			wantKind:    market.KindUpstreamUnavailable,
			errContains: "context deadline exceeded",
		},
		{
			name: "undecodable body",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte("not json"))
				}))
			},
			maxRetries: 2,
			wantErr:    true,
			wantKind:   market.KindMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.setupServer()
			defer server.Close()

			client := NewClient(
				WithBaseURL(server.URL),
				WithHTTPClient(server.Client()),
				WithMaxRetries(tt.maxRetries),
				WithRetryBackoff(10*time.Millisecond),
			)

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			var result AllMidsResponse
			err := client.doRequest(ctx, InfoRequest{Type: "allMids"}, &result)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, market.KindOf(err))
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := market.DefaultConfig()
	cfg.InfoURL = "http://example.invalid/info"
	cfg.MaxRetries = 1
	client := NewClientFromConfig(cfg)
	assert.Equal(t, "http://example.invalid/info", client.baseURL)
	assert.Equal(t, 1, client.maxRetries)
	assert.Equal(t, cfg.HTTPTimeout, client.httpClient.Timeout)

	assert.Equal(t, defaultBaseURL, NewClientFromConfig(nil).baseURL)
}

// --- helpers ---

type requestLog struct {
	mu   sync.Mutex
	reqs []InfoRequest
}

func (l *requestLog) add(req InfoRequest) {
	l.mu.Lock()
	l.reqs = append(l.reqs, req)
	l.mu.Unlock()
}

func (l *requestLog) last() InfoRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.reqs) == 0 {
		return InfoRequest{}
	}
	return l.reqs[len(l.reqs)-1]
}

func newMockHyperliquidServer(t *testing.T) (*httptest.Server, *Client, *requestLog) {
	t.Helper()

	metaPayload := []interface{}{
		map[string]interface{}{
			"universe": []map[string]interface{}{
				{"name": "xyz:GOLD", "szDecimals": 4, "maxLeverage": 20, "marginTableId": 1},
				{"name": "xyz:SILVER", "szDecimals": 2, "maxLeverage": 20, "marginTableId": 1},
			},
		},
		[]map[string]interface{}{
			{
				"funding":      "0.0000125",
				"openInterest": "12.5",
				"prevDayPx":    "4804.4",
				"dayNtlVlm":    "2500000",
				"dayBaseVlm":   "500",
				"premium":      "0.0003",
				"oraclePx":     "4999.0",
				"markPx":       "5000.5",
				"midPx":        "5000.0",
			},
			{
				"funding":      "-0.00002",
				"openInterest": "1000",
				"prevDayPx":    "100",
				"dayNtlVlm":    "85000",
				"oraclePx":     "99.1",
				"markPx":       "99",
				"midPx":        "99.05",
			},
		},
	}

	book := map[string]interface{}{
		"coin": "BTC",
		"time": 1_700_000_000_000,
		"levels": [][]map[string]interface{}{
			{{"px": "99.5", "sz": "1.2", "n": 3}, {"px": "99.0", "sz": "4", "n": 1}},
			{{"px": "100.5", "sz": "0.7", "n": 2}, {"px": "101.0", "sz": "3", "n": 5}},
		},
	}

	trades := map[string][]map[string]interface{}{
		"BTC": {
			{"coin": "BTC", "side": "B", "px": "101.0", "sz": "0.1", "time": 1_700_000_000_000, "tid": 1},
			{"coin": "BTC", "side": "A", "px": "101.25", "sz": "0.2", "time": 1_700_000_000_500, "tid": 2},
		},
	}

	allMids := map[string]string{"BTC": "150", "kPEPE": "0.00095"}

	seen := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req InfoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		seen.add(req)
		switch req.Type {
		case "metaAndAssetCtxs":
			writeJSON(w, metaPayload)
		case "candleSnapshot":
			params, _ := req.Req.(map[string]interface{})
			start := int64(params["startTime"].(float64))
			closes := make([]float64, 24)
			for i := range closes {
				closes[i] = 4900 + float64(i)*4
			}
			writeJSON(w, buildCandlePayload(params["coin"].(string), "1h", start, 3_600_000, closes))
		case "l2Book":
			writeJSON(w, book)
		case "recentTrades":
			writeJSON(w, trades[strings.ToUpper(req.Coin)])
		case "allMids":
			writeJSON(w, allMids)
		default:
			http.Error(w, "unsupported type", http.StatusBadRequest)
		}
	}))

	client := NewClient(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxRetries(0),
	)
	return server, client, seen
}

// buildCandlePayload returns the bars in reverse order to exercise sorting.
func buildCandlePayload(symbol, interval string, base, stepMillis int64, closes []float64) []map[string]interface{} {
	payload := make([]map[string]interface{}, len(closes))
	for i, close := range closes {
		payload[len(closes)-1-i] = map[string]interface{}{
			"t": base + int64(i)*stepMillis,
			"T": base + int64(i+1)*stepMillis - 1,
			"s": symbol,
			"i": interval,
			"o": formatFloat(close - 1),
			"c": formatFloat(close),
			"h": formatFloat(close + 2),
			"l": formatFloat(close - 2),
			"v": formatFloat(100 + float64(i)),
		}
	}
	return payload
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
