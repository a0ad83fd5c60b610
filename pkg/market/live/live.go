// Package live keeps a subscriber's view of one asset current, either by
// streaming trades over the Hyperliquid websocket or by polling.
package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/exchanges/hyperliquid"
	"bitfrost-api/pkg/market/symbol"
)

// Feed selects what a subscription delivers.
type Feed string

const (
	FeedPrice     Feed = "price"
	FeedMetrics   Feed = "metrics"
	FeedOrderBook Feed = "orderbook"
)

// Update is one delivery. Exactly one of Price, Snapshot and Book is meaningful, per Feed.
type Update struct {
	Feed     Feed
	Symbol   string
	Price    float64
	Snapshot market.MarketSnapshot
	Book     market.OrderBook
	Source   market.SourceKind
	Time     time.Time
}

// Handler receives updates. Calls for one subscription never overlap.
type Handler func(Update)

// Disposer ends a subscription. It is idempotent, and once it returns no
// further handler call starts. It must not be called from inside the handler.
type Disposer func()

// TradeConn is an open trades stream.
type TradeConn interface {
	Next() ([]hyperliquid.Trade, error)
	Ping() error
	Close() error
}

// DialFunc opens a trades stream for coin.
type DialFunc func(ctx context.Context, coin string) (TradeConn, error)

// MetricsSource resolves full market snapshots.
type MetricsSource interface {
	Resolve(ctx context.Context, canonicalID, ownerDex string) (market.MarketSnapshot, error)
}

// BookSource serves order books.
type BookSource interface {
	OrderBook(ctx context.Context, symbol, dex string) (market.OrderBook, error)
}

// PriceSource serves the latest trade price.
type PriceSource interface {
	LastPrice(ctx context.Context, dex, coin string) (float64, error)
}

// Hub creates subscriptions. The zero value is not usable; see NewHub.
type Hub struct {
	classifier *symbol.Classifier
	dial       DialFunc
	metrics    MetricsSource
	books      BookSource
	prices     PriceSource
	cfg        market.LiveConfig
	timeout    time.Duration
	now        func() time.Time
}

// Option customises a Hub.
type Option func(*Hub)

// WithStreamer pushes crypto prices from the given websocket streamer.
func WithStreamer(s *hyperliquid.Streamer) Option {
	return func(h *Hub) {
		if s == nil {
			return
		}
		h.dial = func(ctx context.Context, coin string) (TradeConn, error) {
			return s.DialTrades(ctx, coin)
		}
	}
}

// WithDialFunc overrides how trade streams are opened.
func WithDialFunc(fn DialFunc) Option {
	return func(h *Hub) {
		h.dial = fn
	}
}

// WithMetricsSource sets the source polled by metrics feeds.
func WithMetricsSource(src MetricsSource) Option {
	return func(h *Hub) {
		h.metrics = src
	}
}

// WithBookSource sets the source polled by order book feeds.
func WithBookSource(src BookSource) Option {
	return func(h *Hub) {
		h.books = src
	}
}

// WithPriceSource sets the source polled by price feeds that cannot stream.
func WithPriceSource(src PriceSource) Option {
	return func(h *Hub) {
		h.prices = src
	}
}

// WithConfig overrides intervals and backoff. Zero fields keep their defaults.
func WithConfig(cfg market.LiveConfig) Option {
	return func(h *Hub) {
		setIfPositive(&h.cfg.Throttle, cfg.Throttle)
		setIfPositive(&h.cfg.PollMetrics, cfg.PollMetrics)
		setIfPositive(&h.cfg.PollOrderBook, cfg.PollOrderBook)
		setIfPositive(&h.cfg.PollPrice, cfg.PollPrice)
		setIfPositive(&h.cfg.ReconnectBase, cfg.ReconnectBase)
		setIfPositive(&h.cfg.ReconnectMax, cfg.ReconnectMax)
	}
}

// WithRequestTimeout bounds each poll request.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Hub) {
		setIfPositive(&h.timeout, d)
	}
}

func setIfPositive(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// NewHub builds a hub. Sources left unset make the matching feeds deliver mock updates.
func NewHub(classifier *symbol.Classifier, opts ...Option) *Hub {
	if classifier == nil {
		classifier = symbol.NewClassifier()
	}
	defaults := market.DefaultConfig().Live
	h := &Hub{
		classifier: classifier,
		cfg:        defaults,
		timeout:    8 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe starts delivering feed updates for identifier to handler. The
// strategy is fixed at subscription time: crypto price feeds stream when a
// dialer is configured, every other combination polls.
func (h *Hub) Subscribe(identifier string, feed Feed, handler Handler) Disposer {
	cls := h.classifier.Classify(identifier)
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		handler: handler,
		cancel:  cancel,
		symbol:  cls.CanonicalID,
		feed:    feed,
	}
	if feed == FeedPrice && !cls.IsRWA() && h.dial != nil {
		p := &pusher{hub: h, sub: sub, coin: cls.CanonicalID, notify: make(chan struct{}, 1)}
		sub.wg.Add(2)
		go p.read(ctx)
		go p.flush(ctx)
	} else {
		p := &poller{hub: h, sub: sub, cls: cls}
		sub.wg.Add(1)
		go p.run(ctx)
	}
	return sub.dispose
}

type subscription struct {
	handler Handler
	cancel  context.CancelFunc
	symbol  string
	feed    Feed

	stopped  atomic.Bool
	mu       sync.Mutex
	stopOnce sync.Once
	wg       sync.WaitGroup

	connMu sync.Mutex
	conn   TradeConn
}

// deliver runs the handler unless the subscription has been disposed.
func (s *subscription) deliver(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return
	}
	s.handler(u)
}

func (s *subscription) dispose() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.cancel()
		s.setConn(nil)
		// wait out a handler call already in flight
		s.mu.Lock()
		s.mu.Unlock()
	})
}

// setConn swaps the current stream, closing the previous one.
// It returns false when the subscription is already stopped.
func (s *subscription) setConn(conn TradeConn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if conn == nil {
		return true
	}
	if s.stopped.Load() {
		_ = conn.Close()
		return false
	}
	s.conn = conn
	return true
}
