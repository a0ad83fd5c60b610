// Package metrics resolves the present-moment market state of one asset by
// combining the DEX snapshot, the trailing 24h candles and the order book.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/exchanges/hyperliquid"
	"bitfrost-api/pkg/market/freshness"
)

const (
	candleInterval = "1h"
	candleWindow   = 24 * time.Hour
	defaultTimeout = 8 * time.Second
)

// SnapshotSource returns the whole universe of a DEX. *hyperliquid.Client satisfies it.
type SnapshotSource interface {
	MetaAndAssetCtxs(ctx context.Context, dex string) (*hyperliquid.MetaAndAssetCtxsResponse, error)
}

// BookSource serves candles and order books. *proxy.Client and *RoutedBooks satisfy it.
type BookSource interface {
	Candles(ctx context.Context, symbol, dex, interval string, start, end time.Time) ([]market.Candle, error)
	OrderBook(ctx context.Context, symbol, dex string) (market.OrderBook, error)
}

// Resolver builds MarketSnapshots. Live results are cached per (dex, id).
type Resolver struct {
	snapshots   SnapshotSource
	books       BookSource
	cache       *freshness.Cache[market.MarketSnapshot]
	keyFn       func(dex, canonicalID string) string
	timeout     time.Duration
	now         func() time.Time
	persistence market.Persistence
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithTimeout bounds the three concurrent fetches.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithKeyFunc sets how (dex, id) maps to a cache key.
func WithKeyFunc(fn func(dex, canonicalID string) string) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.keyFn = fn
		}
	}
}

// WithClock injects the time source used for the candle window and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithPersistence records every live snapshot. Failures are logged only.
func WithPersistence(p market.Persistence) Option {
	return func(r *Resolver) {
		r.persistence = p
	}
}

// NewResolver wires a resolver to its upstreams and cache.
func NewResolver(snapshots SnapshotSource, books BookSource, cache *freshness.Cache[market.MarketSnapshot], opts ...Option) *Resolver {
	r := &Resolver{
		snapshots: snapshots,
		books:     books,
		cache:     cache,
		keyFn:     func(dex, id string) string { return dex + "|" + id },
		timeout:   defaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// degraded carries a mock snapshot through the cache loader without caching it.
type degraded struct {
	snapshot market.MarketSnapshot
}

func (d *degraded) Error() string { return d.snapshot.ErrorMessage }

// Resolve returns the snapshot of canonicalID on ownerDex. The only error is
// market.ErrAssetNotFoundInUniverse; every other failure yields a zero-valued
// mock snapshot carrying the reason.
func (r *Resolver) Resolve(ctx context.Context, canonicalID, ownerDex string) (market.MarketSnapshot, error) {
	key := r.keyFn(ownerDex, canonicalID)
	entry, err := r.cache.Load(ctx, key, func(ctx context.Context) (freshness.Entry[market.MarketSnapshot], error) {
		snap, err := r.fetch(ctx, canonicalID, ownerDex)
		if err != nil {
			return freshness.Entry[market.MarketSnapshot]{}, err
		}
		if !snap.Source.IsLive() {
			return freshness.Entry[market.MarketSnapshot]{}, &degraded{snapshot: snap}
		}
		r.persist(ctx, snap)
		return freshness.Entry[market.MarketSnapshot]{Data: snap, Source: snap.Source}, nil
	})
	if err != nil {
		var d *degraded
		if errors.As(err, &d) {
			return d.snapshot, nil
		}
		return market.MarketSnapshot{}, err
	}
	return entry.Data, nil
}

func (r *Resolver) fetch(ctx context.Context, canonicalID, ownerDex string) (market.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.now()
	var (
		meta               *hyperliquid.MetaAndAssetCtxsResponse
		candles            []market.Candle
		book               market.OrderBook
		metaErr, candleErr error
		bookErr            error
	)

	var g errgroup.Group
	g.Go(func() error {
		meta, metaErr = r.snapshots.MetaAndAssetCtxs(ctx, ownerDex)
		return nil
	})
	g.Go(func() error {
		candles, candleErr = r.books.Candles(ctx, canonicalID, ownerDex, candleInterval, now.Add(-candleWindow), now)
		return nil
	})
	g.Go(func() error {
		book, bookErr = r.books.OrderBook(ctx, canonicalID, ownerDex)
		return nil
	})
	_ = g.Wait()

	logger := logx.WithContext(ctx)
	if metaErr != nil {
		logger.Errorf("metrics: snapshot dex=%s id=%s err=%v", ownerDex, canonicalID, metaErr)
		return r.mock(canonicalID, ownerDex, metaErr), nil
	}
	_, assetCtx, found, err := meta.Lookup(canonicalID)
	if err != nil {
		logger.Errorf("metrics: snapshot dex=%s id=%s err=%v", ownerDex, canonicalID, err)
		return r.mock(canonicalID, ownerDex, err), nil
	}
	if !found {
		return market.MarketSnapshot{}, market.NotFound(ownerDex, canonicalID)
	}
	m, err := assetCtx.Metrics()
	if err != nil {
		err = market.Malformed(ownerDex, err)
		logger.Errorf("metrics: snapshot dex=%s id=%s err=%v", ownerDex, canonicalID, err)
		return r.mock(canonicalID, ownerDex, err), nil
	}

	snap := market.MarketSnapshot{
		Symbol:                canonicalID,
		Dex:                   ownerDex,
		MarkPrice:             m.MarkPx,
		OraclePrice:           m.OraclePx,
		MidPrice:              m.MidPx,
		OpenInterestContracts: m.OpenInterest,
		OpenInterestUSD:       m.OpenInterest * m.MarkPx,
		FundingRatePercent:    m.Funding * 100,
		PremiumPercent:        m.Premium * 100,
		Volume24hUSD:          m.DayNtlVlm,
		Change24hPercent:      m.Change24hPercent(),
		Source:                market.SourceLive,
		UpdatedAt:             now.UTC(),
	}

	if candleErr != nil {
		logger.Infof("metrics: candles unavailable dex=%s id=%s err=%v", ownerDex, canonicalID, candleErr)
	}
	applyCandles(&snap, candles)

	if bookErr != nil {
		logger.Infof("metrics: orderbook unavailable dex=%s id=%s err=%v", ownerDex, canonicalID, bookErr)
	}
	applyBook(&snap, book, bookErr == nil)

	return snap, nil
}

// applyCandles derives the 24h range, falling back to the mark price when there are no bars.
func applyCandles(snap *market.MarketSnapshot, candles []market.Candle) {
	if len(candles) == 0 {
		snap.Open24h, snap.High24h, snap.Low24h, snap.Close24h = snap.MarkPrice, snap.MarkPrice, snap.MarkPrice, snap.MarkPrice
		return
	}
	high, low := math.Inf(-1), math.Inf(1)
	for _, c := range candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	snap.Open24h = candles[0].Open
	snap.Close24h = candles[len(candles)-1].Close
	snap.High24h = high
	snap.Low24h = low
}

// applyBook derives top of book, falling back to the mark price with zero spread.
func applyBook(snap *market.MarketSnapshot, book market.OrderBook, ok bool) {
	bid, ask, top := book.Top()
	if !ok || !top {
		snap.BestBid, snap.BestAsk, snap.SpreadBps = snap.MarkPrice, snap.MarkPrice, 0
		return
	}
	snap.BestBid, snap.BestAsk = bid, ask
	if mid := (bid + ask) / 2; mid > 0 {
		snap.SpreadBps = (ask - bid) / mid * 10_000
	}
}

func (r *Resolver) mock(canonicalID, ownerDex string, cause error) market.MarketSnapshot {
	snap := market.MockSnapshot(canonicalID, ownerDex, fmt.Sprintf("snapshot unavailable: %v", cause))
	snap.UpdatedAt = r.now().UTC()
	return snap
}

func (r *Resolver) persist(ctx context.Context, snap market.MarketSnapshot) {
	if r.persistence == nil {
		return
	}
	if err := r.persistence.RecordSnapshot(ctx, snap); err != nil {
		logx.WithContext(ctx).Errorf("metrics: persist snapshot dex=%s id=%s err=%v", snap.Dex, snap.Symbol, err)
	}
}
