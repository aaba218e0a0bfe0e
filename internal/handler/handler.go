package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/command"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/shift"
)

type SupervisorStore interface {
	GetSupervisorByUsername(ctx context.Context, username string) (*domain.Supervisor, error)
}

// Shifts 由 shift.Service 实现
type Shifts interface {
	Create(ctx context.Context, actor domain.Actor, in shift.CreateInput) (*shift.CreateResult, error)
	CreateSeries(ctx context.Context, actor domain.Actor, in shift.SeriesInput) ([]*shift.CreateResult, error)
	Get(ctx context.Context, id int64) (*shift.View, error)
	ListOpen(ctx context.Context, areaIDs []int64) ([]*shift.View, error)
	Assign(ctx context.Context, actor domain.Actor, shiftID, employeeID int64, force bool) (*shift.View, error)
	Unassign(ctx context.Context, actor domain.Actor, shiftID int64) (*shift.View, error)
	Repost(ctx context.Context, actor domain.Actor, shiftID int64, notifyAllAreas bool) (*shift.NotifyResult, error)
	Notify(ctx context.Context, actor domain.Actor, shiftID int64, notifyAllAreas bool) (*shift.NotifyResult, error)
	Cancel(ctx context.Context, actor domain.Actor, shiftID int64) (*shift.View, error)
	BulkCancel(ctx context.Context, actor domain.Actor, shiftIDs []int64) []shift.BulkCancelResult
	Broadcast(ctx context.Context, actor domain.Actor, in shift.BroadcastInput) (int, error)
}

// Inbound 由 command.Interpreter 实现
type Inbound interface {
	Handle(ctx context.Context, in command.Inbound) (*command.Outcome, error)
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	translator  ut.Translator
	supervisors SupervisorStore
	shifts      Shifts
	inbound     Inbound
	gatherer    prometheus.Gatherer

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, supervisors SupervisorStore, shifts Shifts, inbound Inbound, gatherer prometheus.Gatherer) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		translator:  trans,
		supervisors: supervisors,
		shifts:      shifts,
		inbound:     inbound,
		gatherer:    gatherer,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 短信服务商的回调，签名校验在网关完成
	h.Mux.Post("/webhooks/sms", h.ReceiveSMS)

	h.Mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/open", h.ListOpenShifts)
			r.Group(func(r chi.Router) {
				r.Use(h.RequiredPermission(domain.PermissionShiftsWrite))
				r.Post("/", h.CreateShift)
				r.Post("/series", h.CreateShiftSeries)
				r.Post("/bulk-cancel", h.BulkCancelShifts)
			})
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.shiftInfo)
				r.Get("/", h.GetShift)
				r.Group(func(r chi.Router) {
					r.Use(h.RequiredPermission(domain.PermissionShiftsWrite))
					r.Post("/assign", h.AssignShift)
					r.Post("/unassign", h.UnassignShift)
					r.Post("/repost", h.RepostShift)
					r.Post("/notify", h.NotifyShift)
					r.Delete("/", h.CancelShift)
				})
			})
		})

		r.With(h.RequiredPermission(domain.PermissionShiftsWrite)).Post("/broadcasts", h.Broadcast)
	})
}
