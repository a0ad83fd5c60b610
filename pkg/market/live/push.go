package live

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/exchanges/hyperliquid"
)

const pingInterval = 30 * time.Second

// pusher streams trades for one crypto coin. read owns the connection;
// flush owns delivery and enforces the throttle.
type pusher struct {
	hub    *Hub
	sub    *subscription
	coin   string
	notify chan struct{}

	mu      sync.Mutex
	pending float64
	has     bool
}

func (p *pusher) read(ctx context.Context) {
	defer p.sub.wg.Done()
	logger := logx.WithContext(ctx)
	attempt := 0
	for ctx.Err() == nil {
		conn, err := p.hub.dial(ctx, p.coin)
		if err != nil {
			attempt++
			logger.Debugf("live: connect coin=%s attempt=%d err=%v", p.coin, attempt, err)
			if !sleepCtx(ctx, p.backoff(attempt)) {
				return
			}
			continue
		}
		if !p.sub.setConn(conn) {
			return
		}
		attempt = 0
		err = p.consume(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		p.sub.setConn(nil)
		attempt++
		logger.Debugf("live: stream dropped coin=%s attempt=%d err=%v", p.coin, attempt, err)
		if !sleepCtx(ctx, p.backoff(attempt)) {
			return
		}
	}
}

// consume reads until the stream fails, pinging to keep it open.
func (p *pusher) consume(ctx context.Context, conn TradeConn) error {
	pingCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		trades, err := conn.Next()
		if err != nil {
			return err
		}
		if px, ok := hyperliquid.LatestTradePrice(trades); ok {
			p.offer(px)
		}
	}
}

// backoff is linear in attempt and capped.
func (p *pusher) backoff(attempt int) time.Duration {
	d := p.hub.cfg.ReconnectBase * time.Duration(attempt)
	if ceiling := p.hub.cfg.ReconnectMax; ceiling > 0 && d > ceiling {
		d = ceiling
	}
	return d
}

// offer records px as the latest value; older undelivered values are dropped.
func (p *pusher) offer(px float64) {
	p.mu.Lock()
	p.pending, p.has = px, true
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *pusher) take() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px, ok := p.pending, p.has
	p.has = false
	return px, ok
}

// flush delivers at most one value per throttle window, always the newest.
func (p *pusher) flush(ctx context.Context) {
	defer p.sub.wg.Done()
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notify:
		}
		if !last.IsZero() {
			if wait := p.hub.cfg.Throttle - p.hub.now().Sub(last); wait > 0 && !sleepCtx(ctx, wait) {
				return
			}
		}
		px, ok := p.take()
		if !ok {
			continue
		}
		last = p.hub.now()
		p.sub.deliver(Update{
			Feed:   FeedPrice,
			Symbol: p.coin,
			Price:  px,
			Source: market.SourceLive,
			Time:   last,
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
