package hyperliquid

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"bitfrost-api/pkg/market"
)

// AssetMetrics is the numeric form of an AssetCtx. Prices are in quote units,
// funding and premium are decimals (0.0001 == 0.01%).
type AssetMetrics struct {
	MarkPx       float64
	OraclePx     float64
	MidPx        float64
	Funding      float64
	Premium      float64
	OpenInterest float64
	DayNtlVlm    float64
	DayBaseVlm   float64
	PrevDayPx    float64
}

// MetaAndAssetCtxs fetches the universe and per-asset contexts of dex. An empty
// dex selects the main crypto perpetuals venue.
func (c *Client) MetaAndAssetCtxs(ctx context.Context, dex string) (*MetaAndAssetCtxsResponse, error) {
	var payload MetaAndAssetCtxsResponse
	req := InfoRequest{Type: "metaAndAssetCtxs", Dex: strings.TrimSpace(dex)}
	if err := c.doRequest(ctx, req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Lookup finds name in the universe by exact case-insensitive match and returns
// the index-aligned context. found is false when the name is absent. A listed
// name without a context is a malformed payload and comes back as err.
func (m *MetaAndAssetCtxsResponse) Lookup(name string) (entry UniverseEntry, assetCtx AssetCtx, found bool, err error) {
	if m == nil {
		return UniverseEntry{}, AssetCtx{}, false, nil
	}
	name = strings.TrimSpace(name)
	for i, e := range m.Universe {
		if !strings.EqualFold(e.Name, name) {
			continue
		}
		if i >= len(m.AssetCtxs) {
			return e, AssetCtx{}, true, malformed("hyperliquid: %s at index %d has no asset context (%d contexts)", e.Name, i, len(m.AssetCtxs))
		}
		return e, m.AssetCtxs[i], true, nil
	}
	return UniverseEntry{}, AssetCtx{}, false, nil
}

// Metrics parses the string fields of the context. A missing mark price is an
// error; a missing mid price falls back to mark, other missing fields to zero.
func (a AssetCtx) Metrics() (AssetMetrics, error) {
	mark, err := parseFloat(a.MarkPx)
	if err != nil {
		return AssetMetrics{}, fmt.Errorf("hyperliquid: parse mark price: %w", err)
	}
	if math.IsNaN(mark) {
		return AssetMetrics{}, fmt.Errorf("hyperliquid: missing mark price")
	}
	out := AssetMetrics{MarkPx: mark}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"oracle price", a.OraclePx, &out.OraclePx},
		{"mid price", a.MidPx, &out.MidPx},
		{"funding", a.Funding, &out.Funding},
		{"premium", a.Premium, &out.Premium},
		{"open interest", a.OpenInterest, &out.OpenInterest},
		{"dayNotional volume", a.DayNtlVlm, &out.DayNtlVlm},
		{"dayBase volume", a.DayBaseVlm, &out.DayBaseVlm},
		{"prevDay price", a.PrevDayPx, &out.PrevDayPx},
	}
	for _, f := range fields {
		v, err := parseFloat(f.raw)
		if err != nil {
			return AssetMetrics{}, fmt.Errorf("hyperliquid: parse %s: %w", f.name, err)
		}
		if math.IsNaN(v) {
			v = 0
		}
		*f.dst = v
	}
	if out.MidPx == 0 {
		out.MidPx = mark
	}
	return out, nil
}

// Change24hPercent is the move of the mark price against the previous day price.
func (m AssetMetrics) Change24hPercent() float64 {
	if m.PrevDayPx == 0 {
		return 0
	}
	return (m.MarkPx - m.PrevDayPx) / m.PrevDayPx * 100
}

// Mids returns mid prices for every asset of dex.
func (c *Client) Mids(ctx context.Context, dex string) (AllMidsResponse, error) {
	var response AllMidsResponse
	if err := c.doRequest(ctx, InfoRequest{Type: "allMids", Dex: strings.TrimSpace(dex)}, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func parseFloat(val string) (float64, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(val, 64)
}

func malformed(format string, args ...interface{}) error {
	return market.Malformed(sourceName, fmt.Errorf(format, args...))
}
