package reminder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/metrics"
)

type Store interface {
	GetShift(ctx context.Context, id int64) (*domain.Shift, error)
	GetShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error)
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
	GetMessages(ctx context.Context, filter domain.MessageFilter) ([]*domain.Message, error)
}

type Sender interface {
	SendReminder(ctx context.Context, shift *domain.Shift, employee *domain.Employee) (*domain.Message, error)
}

type Settings interface {
	Bool(ctx context.Context, key string) bool
	Int(ctx context.Context, key string) int
}

// Stopper 与 *time.Timer 的 Stop 语义一致
type Stopper interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Stopper

const (
	TriggerTimer = "timer"
	TriggerSweep = "sweep"
)

const (
	OutcomeSent      = "sent"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeExhausted = "exhausted"
	OutcomeNotDue    = "not_due"
	OutcomeStarted   = "started"
	OutcomeStale     = "stale"
	OutcomeOptedOut  = "opted_out"
	OutcomeDisabled  = "disabled"
	OutcomeError     = "error"
)

type Options struct {
	Location      *time.Location
	SweepInterval time.Duration
	// MaxAttempts 同一个 (班次, 员工) 最多允许失败的次数
	MaxAttempts int
	SendTimeout time.Duration
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Now         func() time.Time
	AfterFunc   AfterFunc
}

type registration struct {
	fireAt time.Time
	timer  Stopper
}

type Scheduler struct {
	store    Store
	sender   Sender
	settings Settings

	loc         *time.Location
	interval    time.Duration
	maxAttempts int
	sendTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	afterFunc   AfterFunc

	mu     sync.Mutex
	timers map[pairKey]*registration
	locks  *keyedMutex
}

func NewScheduler(store Store, sender Sender, settings Settings, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 15 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		}
	}

	return &Scheduler{
		store:       store,
		sender:      sender,
		settings:    settings,
		loc:         opts.Location,
		interval:    opts.SweepInterval,
		maxAttempts: opts.MaxAttempts,
		sendTimeout: opts.SendTimeout,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         opts.Now,
		afterFunc:   opts.AfterFunc,
		timers:      make(map[pairKey]*registration),
		locks:       newKeyedMutex(),
	}
}

// window 返回提醒时间和班次开始时间
func (s *Scheduler) window(ctx context.Context, shift *domain.Shift) (time.Time, time.Time, error) {
	start, err := shift.StartAt(s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	hours := s.settings.Int(ctx, domain.SettingShiftReminderHours)
	if hours <= 0 {
		s.logger.Warn("提醒提前小时数不合法，使用 24 小时", "hours", hours)
		hours = 24
	}

	return start.Add(-time.Duration(hours) * time.Hour), start, nil
}

// Schedule 在班次被分配后调用。提醒时间已过但班次未开始时会立即发送。
func (s *Scheduler) Schedule(ctx context.Context, shift *domain.Shift) error {
	if !s.settings.Bool(ctx, domain.SettingShiftReminderEnabled) {
		return nil
	}
	if shift.Status != domain.ShiftStatusClaimed || shift.AssignedEmployeeID == nil {
		return nil
	}

	remindAt, start, err := s.window(ctx, shift)
	if err != nil {
		return err
	}

	now := s.now()
	if !now.Before(start) {
		return nil
	}

	s.register(pairKey{shiftID: shift.ID, employeeID: *shift.AssignedEmployeeID}, remindAt, now)
	return nil
}

func (s *Scheduler) register(k pairKey, remindAt, now time.Time) {
	delay := max(remindAt.Sub(now), 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[k]; ok {
		old.timer.Stop()
	}

	reg := &registration{fireAt: remindAt}
	reg.timer = s.afterFunc(delay, func() { s.fire(k, reg) })
	s.timers[k] = reg
}

func (s *Scheduler) fire(k pairKey, reg *registration) {
	s.mu.Lock()
	if s.timers[k] == reg {
		delete(s.timers, k)
	}
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("发送提醒时发生 panic", "shiftID", k.shiftID, "employeeID", k.employeeID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	outcome, err := s.deliver(ctx, k, TriggerTimer)
	if err != nil {
		s.logger.Error("发送提醒失败", "shiftID", k.shiftID, "employeeID", k.employeeID, "error", err)
	}
	s.logger.Debug("提醒定时器触发", "shiftID", k.shiftID, "employeeID", k.employeeID, "outcome", outcome)
}

// Cancel 取消内存中的定时器。即使取消失败，发送前的检查也会发现员工已不再被分配。
func (s *Scheduler) Cancel(shiftID, employeeID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pairKey{shiftID: shiftID, employeeID: employeeID}
	reg, ok := s.timers[k]
	if !ok {
		return false
	}
	reg.timer.Stop()
	delete(s.timers, k)
	return true
}

func (s *Scheduler) CancelShift(shiftID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, reg := range s.timers {
		if k.shiftID == shiftID {
			reg.timer.Stop()
			delete(s.timers, k)
			n++
		}
	}
	return n
}

type Pending struct {
	ShiftID    int64
	EmployeeID int64
	FireAt     time.Time
}

// Pending 返回所有尚未触发的定时器，按触发时间排序
func (s *Scheduler) Pending() []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]Pending, 0, len(s.timers))
	for k, reg := range s.timers {
		pending = append(pending, Pending{ShiftID: k.shiftID, EmployeeID: k.employeeID, FireAt: reg.fireAt})
	}
	slices.SortFunc(pending, func(a, b Pending) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ShiftID, b.ShiftID); c != 0 {
			return c
		}
		return cmp.Compare(a.EmployeeID, b.EmployeeID)
	})
	return pending
}

// deliver 在持有 (班次, 员工) 锁的情况下重新读取班次并检查短信记录，
// 同一进程内的定时器和巡检不会重复发送，多进程之间只能尽力而为
func (s *Scheduler) deliver(ctx context.Context, k pairKey, trigger string) (outcome string, err error) {
	defer func() {
		s.metrics.ReminderEvaluated(trigger, outcome)
	}()

	unlock := s.locks.lock(k)
	defer unlock()

	if !s.settings.Bool(ctx, domain.SettingShiftReminderEnabled) {
		return OutcomeDisabled, nil
	}

	shift, err := s.store.GetShift(ctx, k.shiftID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return OutcomeStale, nil
		}
		return OutcomeError, err
	}
	if shift.Status != domain.ShiftStatusClaimed || !shift.IsAssignedTo(k.employeeID) {
		return OutcomeStale, nil
	}

	remindAt, start, err := s.window(ctx, shift)
	if err != nil {
		return OutcomeError, err
	}
	now := s.now()
	if now.Before(remindAt) {
		return OutcomeNotDue, nil
	}
	if !now.Before(start) {
		return OutcomeStarted, nil
	}

	sent, failed, err := s.ledger(ctx, k)
	if err != nil {
		return OutcomeError, err
	}
	if sent {
		return OutcomeDuplicate, nil
	}
	if failed >= s.maxAttempts {
		return OutcomeExhausted, nil
	}

	employee, err := s.store.GetEmployee(ctx, k.employeeID)
	if err != nil {
		return OutcomeError, fmt.Errorf("读取员工 %d 失败: %w", k.employeeID, err)
	}
	if !employee.Notifiable() {
		return OutcomeOptedOut, nil
	}

	m, err := s.sender.SendReminder(ctx, shift, employee)
	if err != nil {
		if errors.Is(err, domain.ErrSMSDisabled) {
			return OutcomeDisabled, nil
		}
		return OutcomeError, err
	}
	if m == nil {
		return OutcomeOptedOut, nil
	}
	if m.Status == domain.DeliveryStatusFailed {
		s.logger.Warn("提醒短信发送失败", "shiftID", k.shiftID, "employeeID", k.employeeID, "attempt", failed+1, "errorCode", m.ErrorCode)
		return OutcomeFailed, nil
	}

	s.logger.Info("已发送班次提醒", "shiftID", k.shiftID, "employeeID", k.employeeID, "trigger", trigger)
	return OutcomeSent, nil
}

// ledger 查询短信记录，失败的尝试不算已发送
func (s *Scheduler) ledger(ctx context.Context, k pairKey) (sent bool, failed int, err error) {
	shiftID, employeeID := k.shiftID, k.employeeID
	messages, err := s.store.GetMessages(ctx, domain.MessageFilter{
		Direction:      domain.MessageDirectionOutbound,
		MessageType:    domain.MessageTypeShiftReminder,
		RelatedShiftID: &shiftID,
		EmployeeID:     &employeeID,
	})
	if err != nil {
		return false, 0, fmt.Errorf("查询提醒记录失败: %w", err)
	}

	for _, m := range messages {
		switch m.Status {
		case domain.DeliveryStatusFailed:
			failed++
		default:
			return true, failed, nil
		}
	}
	return false, failed, nil
}

type SweepResult struct {
	Checked   int
	Sent      int
	Scheduled int
	Errors    int
}

// Sweep 检查所有已分配的班次：提醒时间已到的立即补发，尚未到的补注册定时器。
// 进程重启后内存中的定时器全部丢失，以这里的结果为准。
func (s *Scheduler) Sweep(ctx context.Context) SweepResult {
	defer s.metrics.ObserveSweep(time.Now())

	result := SweepResult{}
	if !s.settings.Bool(ctx, domain.SettingShiftReminderEnabled) {
		return result
	}

	shifts, err := s.store.GetShifts(ctx, domain.ShiftFilter{Statuses: []domain.ShiftStatus{domain.ShiftStatusClaimed}})
	if err != nil {
		s.logger.Error("巡检时无法读取班次", "error", err)
		result.Errors++
		return result
	}

	for _, shift := range shifts {
		if ctx.Err() != nil {
			break
		}
		result.Checked++
		s.sweepShift(ctx, shift, &result)
	}

	s.logger.Info("提醒巡检完成", "checked", result.Checked, "sent", result.Sent, "scheduled", result.Scheduled, "errors", result.Errors)
	return result
}

func (s *Scheduler) sweepShift(ctx context.Context, shift *domain.Shift, result *SweepResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("巡检班次时发生 panic", "shiftID", shift.ID, "panic", r)
			result.Errors++
		}
	}()

	if shift.AssignedEmployeeID == nil {
		s.logger.Warn("已分配的班次没有员工", "shiftID", shift.ID)
		return
	}

	remindAt, start, err := s.window(ctx, shift)
	if err != nil {
		s.logger.Error("巡检时无法计算提醒时间", "shiftID", shift.ID, "error", err)
		result.Errors++
		return
	}

	k := pairKey{shiftID: shift.ID, employeeID: *shift.AssignedEmployeeID}
	now := s.now()
	switch {
	case !now.Before(start):
		return
	case now.Before(remindAt):
		s.mu.Lock()
		_, ok := s.timers[k]
		s.mu.Unlock()
		if !ok {
			s.register(k, remindAt, now)
			result.Scheduled++
		}
	default:
		outcome, err := s.deliver(ctx, k, TriggerSweep)
		if err != nil {
			s.logger.Error("巡检时发送提醒失败", "shiftID", shift.ID, "employeeID", k.employeeID, "error", err)
			result.Errors++
			return
		}
		if outcome == OutcomeSent {
			result.Sent++
		}
	}
}

// Run 启动时立即巡检一次，之后按固定间隔巡检，直到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.stopAll()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, reg := range s.timers {
		reg.timer.Stop()
		delete(s.timers, k)
	}
}
