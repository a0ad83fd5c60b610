package metrics

import (
	"context"
	"time"

	"bitfrost-api/pkg/market"
)

// NativeBooks is the Hyperliquid info endpoint view of candles and books,
// keyed by coin. *hyperliquid.Client satisfies it.
type NativeBooks interface {
	Candles(ctx context.Context, coin, interval string, start, end time.Time) ([]market.Candle, error)
	L2Book(ctx context.Context, coin string) (market.OrderBook, error)
}

// RoutedBooks sends main-venue crypto lookups (empty dex) to the native info
// endpoint and HIP-3 lookups to the proxy.
type RoutedBooks struct {
	native NativeBooks
	hip3   BookSource
}

// NewRoutedBooks builds a BookSource over both upstreams.
func NewRoutedBooks(native NativeBooks, hip3 BookSource) *RoutedBooks {
	return &RoutedBooks{native: native, hip3: hip3}
}

func (b *RoutedBooks) Candles(ctx context.Context, symbol, dex, interval string, start, end time.Time) ([]market.Candle, error) {
	if dex == "" {
		return b.native.Candles(ctx, symbol, interval, start, end)
	}
	return b.hip3.Candles(ctx, symbol, dex, interval, start, end)
}

func (b *RoutedBooks) OrderBook(ctx context.Context, symbol, dex string) (market.OrderBook, error) {
	if dex == "" {
		return b.native.L2Book(ctx, symbol)
	}
	return b.hip3.OrderBook(ctx, symbol, dex)
}
