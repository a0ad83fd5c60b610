package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/zeromicro/go-zero/core/logc"
	"github.com/zeromicro/go-zero/rest/httpx"

	"bitfrost-api/internal/logic"
	"bitfrost-api/internal/svc"
	"bitfrost-api/internal/types"
	"bitfrost-api/pkg/market/symbol"
)

func StreamHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StreamRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		client := make(chan *types.StreamEvent, 16)
		l := logic.NewStreamLogic(r.Context(), svcCtx)
		dispose, err := l.Subscribe(&req, client)
		switch {
		case errors.Is(err, symbol.ErrMalformedIdentifier):
			writeMalformedID(r, w, err)
			return
		case errors.Is(err, logic.ErrLiveDisabled):
			httpx.WriteJsonCtx(r.Context(), w, http.StatusServiceUnavailable, types.ErrorResponse{
				Code:    "live_unavailable",
				Message: err.Error(),
			})
			return
		case err != nil:
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		defer dispose()

		flusher, _ := w.(http.Flusher)
		for {
			select {
			case data := <-client:
				output, err := json.Marshal(data)
				if err != nil {
					logc.Errorf(r.Context(), "handler: stream marshal err=%v", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", output); err != nil {
					logc.Errorf(r.Context(), "handler: stream write err=%v", err)
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}
