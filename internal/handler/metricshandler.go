package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"bitfrost-api/internal/logic"
	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
	"bitfrost-api/pkg/market"
	"bitfrost-api/pkg/market/symbol"
)

func MetricsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.MetricsRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewMetricsLogic(r.Context(), svcCtx)
		resp, err := l.Metrics(&req)
		switch {
		case errors.Is(err, market.ErrAssetNotFoundInUniverse):
			httpx.WriteJsonCtx(r.Context(), w, http.StatusNotFound, types.ErrorResponse{
				Code:    string(market.KindAssetNotFoundInUniverse),
				Message: err.Error(),
			})
		case errors.Is(err, symbol.ErrMalformedIdentifier):
			writeMalformedID(r, w, err)
		case err != nil:
			httpx.ErrorCtx(r.Context(), w, err)
		default:
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

func writeMalformedID(r *http.Request, w http.ResponseWriter, err error) {
	httpx.WriteJsonCtx(r.Context(), w, http.StatusBadRequest, types.ErrorResponse{
		Code:    "malformed_identifier",
		Message: err.Error(),
	})
}
