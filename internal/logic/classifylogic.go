package logic

import (
	"context"
	"errors"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
)

var errMissingID = errors.New("id is required")

type ClassifyLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewClassifyLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ClassifyLogic {
	return &ClassifyLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ClassifyLogic) Classify(req *types.ClassifyRequest) (*types.ClassifyResponse, error) {
	id := strings.TrimSpace(req.Id)
	if id == "" {
		return nil, errMissingID
	}
	cls := l.svcCtx.Classifier.Classify(id)
	return &types.ClassifyResponse{
		Identifier:  id,
		AssetClass:  string(cls.Class),
		OwnerDex:    cls.OwnerDex,
		CanonicalId: cls.CanonicalID,
		Symbol:      l.svcCtx.Classifier.BareSymbol(cls.CanonicalID),
	}, nil
}
