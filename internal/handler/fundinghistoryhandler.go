package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"bitfrost-api/internal/logic"
	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
	"bitfrost-api/pkg/market/symbol"
)

func FundingHistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.FundingHistoryRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewFundingHistoryLogic(r.Context(), svcCtx)
		resp, err := l.FundingHistory(&req)
		switch {
		case errors.Is(err, symbol.ErrMalformedIdentifier):
			writeMalformedID(r, w, err)
		case err != nil:
			httpx.ErrorCtx(r.Context(), w, err)
		default:
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
