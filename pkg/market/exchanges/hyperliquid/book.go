package hyperliquid

import (
	"context"
	"math"
	"sort"
	"strings"

	"bitfrost-api/pkg/market"
)

// L2Book fetches the aggregated order book of coin. Bids and asks come back best first.
func (c *Client) L2Book(ctx context.Context, coin string) (market.OrderBook, error) {
	var response L2BookResponse
	if err := c.doRequest(ctx, InfoRequest{Type: "l2Book", Coin: strings.TrimSpace(coin)}, &response); err != nil {
		return market.OrderBook{}, err
	}
	return response.OrderBook()
}

// OrderBook converts the wire levels. A payload without both sides is malformed;
// empty sides are not.
func (r L2BookResponse) OrderBook() (market.OrderBook, error) {
	if len(r.Levels) != 2 {
		return market.OrderBook{}, malformed("hyperliquid: l2Book expected 2 sides, got %d", len(r.Levels))
	}
	bids, err := convertLevels(r.Levels[0])
	if err != nil {
		return market.OrderBook{}, err
	}
	asks, err := convertLevels(r.Levels[1])
	if err != nil {
		return market.OrderBook{}, err
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return market.OrderBook{Bids: bids, Asks: asks, Source: market.SourceLive}, nil
}

func convertLevels(levels []L2Level) ([]market.BookLevel, error) {
	out := make([]market.BookLevel, 0, len(levels))
	for _, lvl := range levels {
		px, err := parseFloat(lvl.Px)
		if err != nil || math.IsNaN(px) {
			return nil, malformed("hyperliquid: l2Book bad px %q", lvl.Px)
		}
		sz, err := parseFloat(lvl.Sz)
		if err != nil || math.IsNaN(sz) {
			return nil, malformed("hyperliquid: l2Book bad sz %q", lvl.Sz)
		}
		out = append(out, market.BookLevel{Price: px, Size: sz})
	}
	return out, nil
}
