package logic

import (
	"context"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
	"bitfrost-api/pkg/market"
)

type AssetsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAssetsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AssetsLogic {
	return &AssetsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Assets returns the aggregated HIP-3 list. It never fails; upstream trouble
// shows up as a mock source with a message.
func (l *AssetsLogic) Assets(req *types.AssetsRequest) (*market.AggregatedAssetList, error) {
	list := l.svcCtx.Aggregator.FetchAll(l.ctx, splitDexes(req.Dex))
	return &list, nil
}

func splitDexes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
