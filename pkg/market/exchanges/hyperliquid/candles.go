package hyperliquid

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bitfrost-api/pkg/market"
)

var supportedIntervals = map[string]struct{}{
	"1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {}, "1h": {}, "4h": {}, "1d": {},
}

// Candles fetches bars for coin in [start, end], oldest first. An empty window
// is not an error.
func (c *Client) Candles(ctx context.Context, coin, interval string, start, end time.Time) ([]market.Candle, error) {
	if _, ok := supportedIntervals[interval]; !ok {
		return nil, fmt.Errorf("hyperliquid: unsupported interval %q", interval)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("hyperliquid: candle window end %s not after start %s", end, start)
	}

	var response CandleResponse
	request := InfoRequest{
		Type: "candleSnapshot",
		Req: CandleSnapshotRequest{
			Coin:      coin,
			Interval:  interval,
			StartTime: start.UnixMilli(),
			EndTime:   end.UnixMilli(),
		},
	}
	if err := c.doRequest(ctx, request, &response); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(response))
	for _, item := range response {
		candles = append(candles, market.Candle{
			OpenTime: item.T,
			Open:     item.O,
			High:     item.H,
			Low:      item.L,
			Close:    item.C,
			Volume:   item.V,
		})
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
	return candles, nil
}
