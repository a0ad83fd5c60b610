package live

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/symbol"
)

var errNoSource = errors.New("live: no source configured for feed")

// poller fetches a full replacement value on every tick, starting immediately.
type poller struct {
	hub *Hub
	sub *subscription
	cls symbol.Classification
}

func (p *poller) interval() time.Duration {
	switch p.sub.feed {
	case FeedMetrics:
		return p.hub.cfg.PollMetrics
	case FeedOrderBook:
		return p.hub.cfg.PollOrderBook
	default:
		return p.hub.cfg.PollPrice
	}
}

func (p *poller) run(ctx context.Context) {
	defer p.sub.wg.Done()
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()
	for {
		u := p.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		p.sub.deliver(u)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *poller) fetch(ctx context.Context) Update {
	ctx, cancel := context.WithTimeout(ctx, p.hub.timeout)
	defer cancel()

	id, dex := p.cls.CanonicalID, p.cls.OwnerDex
	u := Update{Feed: p.sub.feed, Symbol: id, Source: market.SourceLive, Time: p.hub.now()}
	var err error
	switch p.sub.feed {
	case FeedMetrics:
		if p.hub.metrics == nil {
			err = errNoSource
			break
		}
		u.Snapshot, err = p.hub.metrics.Resolve(ctx, id, dex)
		if err == nil {
			u.Source = u.Snapshot.Source
		}
	case FeedOrderBook:
		if p.hub.books == nil {
			err = errNoSource
			break
		}
		u.Book, err = p.hub.books.OrderBook(ctx, id, dex)
		if err == nil && u.Book.Source != "" {
			u.Source = u.Book.Source
		}
	default:
		if p.hub.prices == nil {
			err = errNoSource
			break
		}
		u.Price, err = p.hub.prices.LastPrice(ctx, dex, id)
	}
	if err == nil {
		return u
	}

	if ctx.Err() == nil {
		logx.WithContext(ctx).Debugf("live: poll feed=%s id=%s dex=%s err=%v", p.sub.feed, id, dex, err)
	}
	mock := Update{Feed: p.sub.feed, Symbol: id, Source: market.SourceMock, Time: u.Time}
	switch p.sub.feed {
	case FeedMetrics:
		mock.Snapshot = market.MockSnapshot(id, dex, err.Error())
	case FeedOrderBook:
		mock.Book = market.OrderBook{Bids: []market.BookLevel{}, Asks: []market.BookLevel{}, Source: market.SourceMock}
	}
	return mock
}
