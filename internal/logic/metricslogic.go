package logic

import (
	"context"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/symbol"
)

type MetricsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewMetricsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *MetricsLogic {
	return &MetricsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Metrics resolves the snapshot of req.Id. Besides a missing or malformed id the
// only error is market.ErrAssetNotFoundInUniverse.
func (l *MetricsLogic) Metrics(req *types.MetricsRequest) (*market.MarketSnapshot, error) {
	cls, err := resolveTarget(l.svcCtx.Classifier, req.Id, req.Dex)
	if err != nil {
		return nil, err
	}
	snap, err := l.svcCtx.Metrics.Resolve(l.ctx, cls.CanonicalID, cls.OwnerDex)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// resolveTarget rejects ids outside the identifier grammar with
// symbol.ErrMalformedIdentifier, then classifies. An explicit dex overrides the
// default DEX for unprefixed symbols.
func resolveTarget(c *symbol.Classifier, id, dex string) (symbol.Classification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return symbol.Classification{}, errMissingID
	}
	if _, err := c.Parse(id); err != nil {
		return symbol.Classification{}, err
	}
	if dex = strings.TrimSpace(dex); dex != "" {
		return c.ClassifyWithDefault(id, dex), nil
	}
	return c.Classify(id), nil
}
