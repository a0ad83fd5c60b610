package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
	"bitfrost-api/pkg/market"
)

type FundingHistoryLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewFundingHistoryLogic(ctx context.Context, svcCtx *svc.ServiceContext) *FundingHistoryLogic {
	return &FundingHistoryLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// FundingHistory returns the stored funding samples, oldest first. A missing or
// failing store yields an empty mock response rather than an error.
func (l *FundingHistoryLogic) FundingHistory(req *types.FundingHistoryRequest) (*types.FundingHistoryResponse, error) {
	cls, err := resolveTarget(l.svcCtx.Classifier, req.Id, req.Dex)
	if err != nil {
		return nil, err
	}
	resp := &types.FundingHistoryResponse{
		Symbol: cls.CanonicalID,
		Dex:    cls.OwnerDex,
		Points: []market.FundingPoint{},
		Source: market.SourceMock,
	}
	if l.svcCtx.Funding == nil {
		resp.ErrorMessage = "funding history store not configured"
		return resp, nil
	}
	points, err := l.svcCtx.Funding.History(l.ctx, cls.OwnerDex, l.svcCtx.Classifier.BareSymbol(cls.CanonicalID))
	if err != nil {
		l.Errorf("logic: funding history id=%s dex=%s err=%v", cls.CanonicalID, cls.OwnerDex, err)
		resp.ErrorMessage = err.Error()
		return resp, nil
	}
	if len(points) > 0 {
		resp.Points = points
	}
	resp.Source = market.SourceLive
	return resp, nil
}
