package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"bitfrost-api/internal/logic"
	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
)

func ClassifyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ClassifyRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewClassifyLogic(r.Context(), svcCtx)
		resp, err := l.Classify(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
