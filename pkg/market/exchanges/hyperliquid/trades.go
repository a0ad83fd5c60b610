package hyperliquid

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// RecentTrades fetches the latest public fills of coin.
func (c *Client) RecentTrades(ctx context.Context, coin string) ([]Trade, error) {
	var trades []Trade
	if err := c.doRequest(ctx, InfoRequest{Type: "recentTrades", Coin: strings.TrimSpace(coin)}, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// LastPrice returns the price of the newest trade of coin, falling back to the
// mid price on dex when there are no recent trades.
func (c *Client) LastPrice(ctx context.Context, dex, coin string) (float64, error) {
	trades, err := c.RecentTrades(ctx, coin)
	if err != nil {
		return 0, err
	}
	if px, ok := LatestTradePrice(trades); ok {
		return px, nil
	}

	mids, err := c.Mids(ctx, dex)
	if err != nil {
		return 0, err
	}
	for name, raw := range mids {
		if !strings.EqualFold(name, coin) {
			continue
		}
		px, err := parseFloat(raw)
		if err != nil || math.IsNaN(px) {
			return 0, malformed("hyperliquid: parse mid %q for %s", raw, coin)
		}
		return px, nil
	}
	return 0, fmt.Errorf("hyperliquid: price for %s not found", coin)
}

// LatestTradePrice picks the price of the trade with the greatest timestamp.
func LatestTradePrice(trades []Trade) (float64, bool) {
	var (
		best  Trade
		found bool
	)
	for _, t := range trades {
		if !found || t.Time >= best.Time {
			best, found = t, true
		}
	}
	if !found {
		return 0, false
	}
	px, err := parseFloat(best.Px)
	if err != nil || math.IsNaN(px) || px <= 0 {
		return 0, false
	}
	return px, true
}
