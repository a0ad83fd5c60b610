package logic

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
	"bitfrost-api/pkg/market/live"
)

// ErrLiveDisabled is returned when the service runs without a live hub.
var ErrLiveDisabled = errors.New("live updates not configured")

type StreamLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStreamLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StreamLogic {
	return &StreamLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Subscribe starts a live subscription feeding client. Updates arriving while
// client is full are dropped; the next one carries fresher data anyway. The
// caller owns the returned Disposer and must call it before abandoning client.
func (l *StreamLogic) Subscribe(req *types.StreamRequest, client chan<- *types.StreamEvent) (live.Disposer, error) {
	if l.svcCtx.Live == nil {
		return nil, ErrLiveDisabled
	}
	cls, err := resolveTarget(l.svcCtx.Classifier, req.Id, "")
	if err != nil {
		return nil, err
	}

	feed := live.Feed(req.Feed)
	dispose := l.svcCtx.Live.Subscribe(cls.CanonicalID, feed, func(u live.Update) {
		select {
		case client <- toStreamEvent(u):
		default:
			l.Debugf("logic: stream client full, dropping id=%s feed=%s", u.Symbol, u.Feed)
		}
	})
	l.Infof("logic: stream opened id=%s feed=%s", cls.CanonicalID, feed)
	return dispose, nil
}

func toStreamEvent(u live.Update) *types.StreamEvent {
	ev := &types.StreamEvent{
		Feed:   string(u.Feed),
		Symbol: u.Symbol,
		Source: u.Source,
		Time:   u.Time.UnixMilli(),
	}
	switch u.Feed {
	case live.FeedPrice:
		ev.Price = u.Price
	case live.FeedMetrics:
		snap := u.Snapshot
		ev.Snapshot = &snap
	case live.FeedOrderBook:
		book := u.Book
		ev.Book = &book
	}
	return ev
}
