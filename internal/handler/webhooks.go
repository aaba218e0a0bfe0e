package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/command"
)

// ReceiveSMS 接收上行短信，字段名与 Kavenegar 的回调一致（from、message、messageid）
func (h *Handler) ReceiveSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, err)
		return
	}

	in := command.Inbound{
		From:              r.Form.Get("from"),
		Body:              r.Form.Get("message"),
		ProviderMessageID: r.Form.Get("messageid"),
	}
	if in.From == "" {
		h.errorResponse(w, r, http.StatusBadRequest, "缺少发送者号码")
		return
	}

	out, err := h.inbound.Handle(r.Context(), in)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "已接收", map[string]any{
		"command":   out.Command.Kind,
		"duplicate": out.Duplicate,
	})
}
