package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/shift"
)

type createShiftRequest struct {
	PositionID     int64            `json:"positionID" validate:"required,gt=0"`
	AreaID         int64            `json:"areaID" validate:"required,gt=0"`
	Location       string           `json:"location" validate:"required,max=200"`
	Date           string           `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string           `json:"startTime" validate:"required,datetime=15:04:05"`
	EndTime        string           `json:"endTime" validate:"required,datetime=15:04:05"`
	Requirements   string           `json:"requirements" validate:"max=500"`
	Bonus          *decimal.Decimal `json:"bonus"`
	NotifyAllAreas bool             `json:"notifyAllAreas"`
	// Notify 省略时默认通知
	Notify *bool `json:"notify"`
}

func (req *createShiftRequest) input() shift.CreateInput {
	in := shift.CreateInput{
		PositionID:     req.PositionID,
		AreaID:         req.AreaID,
		Location:       req.Location,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Requirements:   req.Requirements,
		NotifyAllAreas: req.NotifyAllAreas,
		Notify:         req.Notify == nil || *req.Notify,
	}
	if req.Bonus != nil {
		in.Bonus = decimal.NewNullDecimal(*req.Bonus)
	}
	return in
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req createShiftRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	res, err := h.shifts.Create(r.Context(), actorFrom(r), req.input())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	msg := "创建班次成功"
	if res.Downgraded {
		msg = "创建班次成功，但没有向所有区域通知的权限，只通知了所属区域"
	}
	h.successResponse(w, r, msg, res)
}

func (h *Handler) CreateShiftSeries(w http.ResponseWriter, r *http.Request) {
	var req struct {
		createShiftRequest
		RRule string `json:"rrule" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	results, err := h.shifts.CreateSeries(r.Context(), actorFrom(r), shift.SeriesInput{
		CreateInput: req.input(),
		RRule:       req.RRule,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建重复班次成功", results)
}

// ListOpenShifts 通过 areaIDs=1,2 过滤区域，省略表示所有区域
func (h *Handler) ListOpenShifts(w http.ResponseWriter, r *http.Request) {
	var areaIDs []int64
	if raw := r.URL.Query().Get("areaIDs"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				h.errorResponse(w, r, http.StatusBadRequest, "区域ID无效")
				return
			}
			areaIDs = append(areaIDs, id)
		}
	}

	views, err := h.shifts.ListOpen(r.Context(), areaIDs)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取空缺班次成功", views)
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	v := r.Context().Value(ShiftCtx).(*shift.View)

	h.successResponse(w, r, "获取班次成功", v)
}

func (h *Handler) AssignShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeID int64 `json:"employeeID" validate:"required,gt=0"`
		Force      bool  `json:"force"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	v := r.Context().Value(ShiftCtx).(*shift.View)
	updated, err := h.shifts.Assign(r.Context(), actorFrom(r), v.ID, req.EmployeeID, req.Force)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "分配班次成功", updated)
}

func (h *Handler) UnassignShift(w http.ResponseWriter, r *http.Request) {
	v := r.Context().Value(ShiftCtx).(*shift.View)

	updated, err := h.shifts.Unassign(r.Context(), actorFrom(r), v.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "取消分配成功", updated)
}

type notifyRequest struct {
	NotifyAllAreas bool `json:"notifyAllAreas"`
}

// readOptionalJSON 请求体为空时使用默认值
func (h *Handler) readOptionalJSON(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return h.readJSON(r, v)
}

func (h *Handler) RepostShift(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest

	if err := h.readOptionalJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	v := r.Context().Value(ShiftCtx).(*shift.View)
	res, err := h.shifts.Repost(r.Context(), actorFrom(r), v.ID, req.NotifyAllAreas)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "重新发布班次成功", res)
}

func (h *Handler) NotifyShift(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest

	if err := h.readOptionalJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	v := r.Context().Value(ShiftCtx).(*shift.View)
	res, err := h.shifts.Notify(r.Context(), actorFrom(r), v.ID, req.NotifyAllAreas)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "发送通知成功", res)
}

func (h *Handler) CancelShift(w http.ResponseWriter, r *http.Request) {
	v := r.Context().Value(ShiftCtx).(*shift.View)

	updated, err := h.shifts.Cancel(r.Context(), actorFrom(r), v.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "取消班次成功", updated)
}

func (h *Handler) BulkCancelShifts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids" validate:"required,min=1,max=200,dive,gt=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	results := h.shifts.BulkCancel(r.Context(), actorFrom(r), req.IDs)

	h.successResponse(w, r, "批量取消完成", results)
}

func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AreaIDs []int64 `json:"areaIDs" validate:"omitempty,dive,gt=0"`
		Text    string  `json:"text" validate:"required,max=480"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	n, err := h.shifts.Broadcast(r.Context(), actorFrom(r), shift.BroadcastInput{
		AreaIDs: req.AreaIDs,
		Text:    req.Text,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "群发短信已提交", map[string]int{"recipients": n})
}
