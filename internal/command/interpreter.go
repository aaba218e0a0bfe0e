package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/notify"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/shift"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/utils"
)

type Store interface {
	GetShift(ctx context.Context, id int64) (*domain.Shift, error)
	GetShiftBySMSCode(ctx context.Context, code string) (*domain.Shift, error)
	GetShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error)
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
	GetEmployeeByPhone(ctx context.Context, phone string) (*domain.Employee, error)
	UpdateEmployee(ctx context.Context, e *domain.Employee) error
	GetShiftInterests(ctx context.Context, filter domain.ShiftInterestFilter) ([]*domain.ShiftInterest, error)
	CreateMessage(ctx context.Context, m *domain.Message) error
	GetMessages(ctx context.Context, filter domain.MessageFilter) ([]*domain.Message, error)
}

// Shifts 由 shift.Service 实现，短信指令不直接修改班次
type Shifts interface {
	ExpressInterest(ctx context.Context, actor domain.Actor, shiftID, employeeID int64) (bool, error)
	WithdrawInterest(ctx context.Context, actor domain.Actor, shiftID, employeeID int64) (bool, error)
	Confirm(ctx context.Context, actor domain.Actor, shiftID, employeeID int64) (*shift.View, error)
	ListOpen(ctx context.Context, areaIDs []int64) ([]*shift.View, error)
	EffectiveStatus(s *domain.Shift) domain.ShiftStatus
}

// ReplayGuard 通常是 *redis.Client
type ReplayGuard interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Auditor interface {
	LogEvent(action, actor, targetType string, targetID int64, details map[string]any)
}

type Options struct {
	// Guard 为 nil 时只通过消息记录去重
	Guard    ReplayGuard
	GuardTTL time.Duration
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Location *time.Location
	Now      func() time.Time
}

type Interpreter struct {
	store   Store
	shifts  Shifts
	queue   notify.Queue
	auditor Auditor

	guard    ReplayGuard
	guardTTL time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewInterpreter(store Store, shifts Shifts, queue notify.Queue, auditor Auditor, opts Options) *Interpreter {
	if opts.GuardTTL <= 0 {
		opts.GuardTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Interpreter{
		store:    store,
		shifts:   shifts,
		queue:    queue,
		auditor:  auditor,
		guard:    opts.Guard,
		guardTTL: opts.GuardTTL,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// Inbound 短信服务商推送的上行短信
type Inbound struct {
	From              string
	Body              string
	ProviderMessageID string
}

type Outcome struct {
	Command       Command
	EmployeeID    int64
	ShiftID       int64
	Reply         string
	Duplicate     bool
	UnknownSender bool
}

// Handle 处理一条上行短信：去重、记录、执行指令并异步回复。
// 只有基础设施错误才会返回 error，指令本身无法执行时通过回复告知员工。
func (i *Interpreter) Handle(ctx context.Context, in Inbound) (out *Outcome, err error) {
	phone, err := utils.NormalizePhone(in.From)
	if err != nil {
		phone = in.From
	}
	cmd := Parse(in.Body)
	out = &Outcome{Command: cmd}

	dup, guarded, err := i.seen(ctx, in.ProviderMessageID)
	if err != nil {
		return nil, err
	}
	if dup {
		i.logger.Info("重复的上行短信，已忽略", "providerMessageID", in.ProviderMessageID)
		out.Duplicate = true
		return out, nil
	}
	if guarded {
		// 处理失败时释放去重键，服务商重试时重新处理
		defer func() {
			if err != nil {
				i.release(ctx, in.ProviderMessageID)
			}
		}()
	}

	employee, err := i.store.GetEmployeeByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		i.logger.Warn("收到未登记号码的短信", "phone", phone)
		out.UnknownSender = true
		return out, i.record(ctx, in, phone, nil, nil)
	}
	out.EmployeeID = employee.ID
	i.metrics.InboundCommand(string(cmd.Kind))

	res := i.execute(ctx, cmd, employee)
	out.ShiftID = res.shiftID
	out.Reply = res.reply

	var related *int64
	if res.shiftID != 0 {
		related = &res.shiftID
	}
	if err := i.record(ctx, in, phone, &employee.ID, related); err != nil {
		return nil, err
	}

	if res.reply != "" {
		job := notify.Job{
			Event:        notify.EventReply,
			ShiftID:      res.shiftID,
			EmployeeIDs:  []int64{employee.ID},
			Text:         res.reply,
			IgnoreOptOut: cmd.Kind == KindStop || cmd.Kind == KindStart,
		}
		if err := i.queue.Submit(ctx, job); err != nil {
			i.logger.Error("提交回复短信失败", "employeeID", employee.ID, "error", err)
		}
	}

	return out, nil
}

func guardKey(providerMessageID string) string {
	return "inbound_" + providerMessageID
}

// seen Redis 不可用时退回到消息记录查询，guarded 表示本次已经在 Redis 中占用了去重键
func (i *Interpreter) seen(ctx context.Context, providerMessageID string) (dup, guarded bool, err error) {
	if providerMessageID == "" {
		return false, false, nil
	}

	if i.guard != nil {
		ok, err := i.guard.SetNX(ctx, guardKey(providerMessageID), 1, i.guardTTL).Result()
		if err == nil {
			return !ok, ok, nil
		}
		i.logger.Warn("上行短信去重缓存不可用", slog.String("error", err.Error()))
	}

	messages, err := i.store.GetMessages(ctx, domain.MessageFilter{
		Direction:         domain.MessageDirectionInbound,
		ProviderMessageID: providerMessageID,
	})
	if err != nil {
		return false, false, err
	}
	return len(messages) > 0, false, nil
}

func (i *Interpreter) release(ctx context.Context, providerMessageID string) {
	if err := i.guard.Del(context.WithoutCancel(ctx), guardKey(providerMessageID)).Err(); err != nil {
		i.logger.Error("无法释放上行短信去重键", "providerMessageID", providerMessageID, "error", err)
	}
}

func (i *Interpreter) record(ctx context.Context, in Inbound, phone string, employeeID, shiftID *int64) error {
	return i.store.CreateMessage(ctx, &domain.Message{
		Direction:         domain.MessageDirectionInbound,
		EmployeeID:        employeeID,
		Phone:             phone,
		Content:           in.Body,
		Status:            domain.DeliveryStatusReceived,
		ProviderMessageID: in.ProviderMessageID,
		MessageType:       domain.MessageTypeGeneral,
		RelatedShiftID:    shiftID,
		ThreadID:          notify.ThreadID(phone),
	})
}

func actorOf(e *domain.Employee) domain.Actor {
	return domain.Actor{Name: fmt.Sprintf("employee:%d", e.ID)}
}
