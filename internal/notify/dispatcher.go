package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/sms"
)

type Store interface {
	GetShift(ctx context.Context, id int64) (*domain.Shift, error)
	UpdateShift(ctx context.Context, shift *domain.Shift) error
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
	CreateMessage(ctx context.Context, m *domain.Message) error
}

type Settings interface {
	Bool(ctx context.Context, key string) bool
	String(ctx context.Context, key, fallback string) string
}

type Alerter interface {
	Alert(ctx context.Context, data domain.DeliveryFailureMailData) error
}

type Options struct {
	Metrics  *metrics.Metrics
	Alerter  Alerter
	Logger   *slog.Logger
	Romanize bool
	Now      func() time.Time
}

// renderFailedCode 模板渲染失败时写入消息记录的错误码
const renderFailedCode = "template_render_failed"

type Dispatcher struct {
	store     Store
	transport sms.Transport
	settings  Settings
	metrics   *metrics.Metrics
	alerter   Alerter
	logger    *slog.Logger
	romanize  bool
	now       func() time.Time
	defaults  map[EventType]*template.Template
}

func NewDispatcher(store Store, transport sms.Transport, settings Settings, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	defaults := make(map[EventType]*template.Template, len(defaultTemplates))
	for event, text := range defaultTemplates {
		defaults[event] = template.Must(parseTemplate(event, text))
	}

	return &Dispatcher{
		store:     store,
		transport: transport,
		settings:  settings,
		metrics:   opts.Metrics,
		alerter:   opts.Alerter,
		logger:    opts.Logger,
		romanize:  opts.Romanize,
		now:       opts.Now,
		defaults:  defaults,
	}
}

type Request struct {
	Event      EventType
	Shift      *domain.Shift
	Recipients []*domain.Employee
	Text       string
	// IgnoreOptOut 只用于 STOP / START 的确认回复
	IgnoreOptOut bool
}

type Report struct {
	Sent     int
	Failed   int
	Skipped  int
	Messages []*domain.Message
}

// ThreadID 同一个号码的所有往来短信属于同一个会话
func ThreadID(phone string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(phone)).String()
}

// template 优先使用设置中的 sms_template_<event>，解析失败时回退到内置模板
func (d *Dispatcher) template(ctx context.Context, event EventType) (*template.Template, error) {
	def, ok := d.defaults[event]
	if !ok {
		return nil, fmt.Errorf("未知的通知事件: %s", event)
	}

	override := d.settings.String(ctx, domain.SettingTemplatePrefix+string(event), "")
	if override == "" {
		return def, nil
	}

	tmpl, err := parseTemplate(event, override)
	if err != nil {
		d.logger.Warn("短信模板配置有误，使用内置模板", "event", event, "error", err)
		return def, nil
	}
	return tmpl, nil
}

// Dispatch 逐个发送并记录每一次尝试，单个收件人失败不影响其他人
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Report, error) {
	if !d.settings.Bool(ctx, domain.SettingSMSEnabled) {
		d.logger.Info("短信功能已关闭，跳过发送", "event", req.Event, "recipients", len(req.Recipients))
		return nil, domain.ErrSMSDisabled
	}

	tmpl, err := d.template(ctx, req.Event)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	failures := make([]domain.DeliveryFailureItem, 0)
	for _, e := range req.Recipients {
		if !e.SMSOptIn && !req.IgnoreOptOut {
			report.Skipped++
			continue
		}

		body, err := render(tmpl, newTemplateData(req.Shift, e, req.Text, d.romanize))
		if err != nil {
			// 用户配置的模板可能引用了不存在的字段，换回内置模板重试一次
			body, err = render(d.defaults[req.Event], newTemplateData(req.Shift, e, req.Text, d.romanize))
		}

		var res sms.Result
		if err != nil {
			d.logger.Error("无法渲染短信模板", "event", req.Event, "employeeID", e.ID, "error", err)
			res = sms.Result{ErrorCode: renderFailedCode, ErrorMessage: err.Error()}
		} else {
			res = d.transport.Send(ctx, e.Phone, body)
		}
		m := d.record(ctx, req, e, body, res)
		report.Messages = append(report.Messages, m)

		if res.Success {
			report.Sent++
			continue
		}

		report.Failed++
		failures = append(failures, domain.DeliveryFailureItem{
			EmployeeID:   e.ID,
			Phone:        e.Phone,
			ErrorCode:    res.ErrorCode,
			ErrorMessage: res.ErrorMessage,
		})
		d.logger.Warn("短信发送失败", "event", req.Event, "employeeID", e.ID, "errorCode", res.ErrorCode, "errorMessage", res.ErrorMessage)
	}

	if req.Shift != nil && req.Event.MessageType() == domain.MessageTypeShiftNotification && report.Sent+report.Failed > 0 {
		d.touchShift(ctx, req.Shift.ID)
	}

	if len(failures) > 0 && d.alerter != nil {
		data := domain.DeliveryFailureMailData{
			Event:    string(req.Event),
			Attempts: report.Sent + report.Failed,
			Failures: failures,
		}
		if req.Shift != nil {
			data.ShiftID = req.Shift.ID
		}
		if err := d.alerter.Alert(ctx, data); err != nil {
			d.logger.Error("无法发送短信失败告警", "event", req.Event, "error", err)
		}
	}

	return report, nil
}

func (d *Dispatcher) record(ctx context.Context, req Request, e *domain.Employee, body string, res sms.Result) *domain.Message {
	employeeID := e.ID
	m := &domain.Message{
		Direction:         domain.MessageDirectionOutbound,
		EmployeeID:        &employeeID,
		Phone:             e.Phone,
		Content:           body,
		Status:            domain.DeliveryStatusSent,
		ProviderMessageID: res.ProviderMessageID,
		MessageType:       req.Event.MessageType(),
		ThreadID:          ThreadID(e.Phone),
		ErrorCode:         res.ErrorCode,
		ErrorMessage:      res.ErrorMessage,
	}
	if !res.Success {
		m.Status = domain.DeliveryStatusFailed
	}
	if req.Shift != nil {
		shiftID := req.Shift.ID
		m.RelatedShiftID = &shiftID
	}

	if err := d.store.CreateMessage(ctx, m); err != nil {
		d.logger.Error("无法保存短信记录", "employeeID", e.ID, "messageType", m.MessageType, "error", err)
	}
	d.metrics.MessageSent(string(m.MessageType), string(m.Status))

	return m
}

// touchShift 每批通知只更新一次计数，遇到版本冲突时重新读取
func (d *Dispatcher) touchShift(ctx context.Context, shiftID int64) {
	for attempt := 0; attempt < 3; attempt++ {
		shift, err := d.store.GetShift(ctx, shiftID)
		if err != nil {
			d.logger.Error("无法读取班次以更新通知计数", "shiftID", shiftID, "error", err)
			return
		}

		now := d.now()
		shift.LastNotifiedAt = &now
		shift.NotificationCount++

		err = d.store.UpdateShift(ctx, shift)
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			d.logger.Error("无法更新班次通知计数", "shiftID", shiftID, "error", err)
			return
		}
	}
	d.logger.Warn("班次频繁被修改，放弃更新通知计数", "shiftID", shiftID)
}

// SendReminder 同步发送提醒，员工已退订时返回 nil
func (d *Dispatcher) SendReminder(ctx context.Context, shift *domain.Shift, employee *domain.Employee) (*domain.Message, error) {
	report, err := d.Dispatch(ctx, Request{
		Event:      EventReminder,
		Shift:      shift,
		Recipients: []*domain.Employee{employee},
	})
	if err != nil {
		return nil, err
	}
	if len(report.Messages) == 0 {
		return nil, nil
	}
	return report.Messages[0], nil
}

// Run 执行一个队列任务，班次和员工在执行时重新读取
func (d *Dispatcher) Run(ctx context.Context, job Job) error {
	var shift *domain.Shift
	if job.ShiftID != 0 {
		s, err := d.store.GetShift(ctx, job.ShiftID)
		if err != nil {
			return fmt.Errorf("读取班次 %d 失败: %w", job.ShiftID, err)
		}
		shift = s
	}

	recipients := make([]*domain.Employee, 0, len(job.EmployeeIDs))
	for _, id := range job.EmployeeIDs {
		e, err := d.store.GetEmployee(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				d.logger.Warn("收件人不存在，已跳过", "employeeID", id, "event", job.Event)
				continue
			}
			return fmt.Errorf("读取员工 %d 失败: %w", id, err)
		}
		recipients = append(recipients, e)
	}

	report, err := d.Dispatch(ctx, Request{
		Event:        job.Event,
		Shift:        shift,
		Recipients:   recipients,
		Text:         job.Text,
		IgnoreOptOut: job.IgnoreOptOut,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSMSDisabled) {
			return nil
		}
		return err
	}

	d.logger.Info("通知任务完成", "event", job.Event, "shiftID", job.ShiftID, "sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)
	return nil
}
