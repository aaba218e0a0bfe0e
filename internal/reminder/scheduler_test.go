package reminder

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/memstore"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/notify"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/settings"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/sms/smstest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped
	t.stopped = true
	return active
}

// fire 模拟定时器到期，已停止的定时器不会执行
func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()
	t.f()
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Stopper {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) all() []*fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]*fakeTimer(nil), ft.timers...)
}

type fixture struct {
	store     *memstore.Store
	transport *smstest.Transport
	clock     *fakeClock
	timers    *fakeTimers
	settings  *settings.Service
	sender    *notify.Dispatcher
	shift     *domain.Shift
	alice     *domain.Employee
	bob       *domain.Employee
	t0        time.Time
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Reminder.Enabled = true
	cfg.Reminder.Hours = 24
	cfg.SMS.Enabled = true

	f := &fixture{
		store:     memstore.New(),
		transport: &smstest.Transport{},
		t0:        time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
	}
	f.clock = &fakeClock{t: f.t0}
	f.timers = &fakeTimers{}
	f.settings = settings.NewService(cfg, f.store, nil, discard)
	f.sender = notify.NewDispatcher(f.store, f.transport, f.settings, notify.Options{Logger: discard})

	f.alice = &domain.Employee{Name: "Alice", Phone: "+8613800000001", Status: domain.EmployeeStatusActive, SMSOptIn: true, AreaIDs: []int64{1}}
	f.bob = &domain.Employee{Name: "Bob", Phone: "+8613800000002", Status: domain.EmployeeStatusActive, SMSOptIn: true, AreaIDs: []int64{1}}
	require.NoError(t, f.store.CreateEmployee(ctx, f.alice))
	require.NoError(t, f.store.CreateEmployee(ctx, f.bob))

	// 班次在 T+30h 开始
	f.shift = f.createShift(t, "ABC234", f.t0.Add(30*time.Hour), &f.alice.ID)
	return f
}

func (f *fixture) createShift(t *testing.T, code string, start time.Time, assignee *int64) *domain.Shift {
	t.Helper()

	shift := &domain.Shift{
		AreaID:    1,
		Location:  "North Hall",
		Date:      start.Format(domain.ShiftDateLayout),
		StartTime: start.Format(domain.ShiftTimeLayout),
		EndTime:   start.Add(4 * time.Hour).Format(domain.ShiftTimeLayout),
		Status:    domain.ShiftStatusAvailable,
		SMSCode:   code,
	}
	if assignee != nil {
		id := *assignee
		shift.Status = domain.ShiftStatusClaimed
		shift.AssignedEmployeeID = &id
	}
	require.NoError(t, f.store.CreateShift(context.Background(), shift))
	return shift
}

func (f *fixture) scheduler(opts Options) *Scheduler {
	opts.Location = time.UTC
	opts.Logger = discard
	opts.Now = f.clock.Now
	opts.AfterFunc = f.timers.AfterFunc
	return NewScheduler(f.store, f.sender, f.settings, opts)
}

func (f *fixture) reminders(t *testing.T, employeeID int64) []*domain.Message {
	t.Helper()

	messages, err := f.store.GetMessages(context.Background(), domain.MessageFilter{
		MessageType:    domain.MessageTypeShiftReminder,
		RelatedShiftID: &f.shift.ID,
		EmployeeID:     &employeeID,
	})
	require.NoError(t, err)
	return messages
}

func (f *fixture) assign(t *testing.T, employeeID *int64) {
	t.Helper()

	shift, err := f.store.GetShift(context.Background(), f.shift.ID)
	require.NoError(t, err)
	shift.AssignedEmployeeID = employeeID
	shift.Status = domain.ShiftStatusAvailable
	if employeeID != nil {
		shift.Status = domain.ShiftStatusClaimed
	}
	require.NoError(t, f.store.UpdateShift(context.Background(), shift))
	f.shift = shift
}

func TestSchedule_ThirtyHoursAheadFiresAtSixHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.scheduler(Options{})

	require.NoError(t, s.Schedule(ctx, f.shift))

	timers := f.timers.all()
	require.Len(t, timers, 1)
	assert.Equal(t, 6*time.Hour, timers[0].d)
	assert.Equal(t, []Pending{{ShiftID: f.shift.ID, EmployeeID: f.alice.ID, FireAt: f.t0.Add(6 * time.Hour)}}, s.Pending())

	// 提醒时间之前巡检不会发送
	f.clock.Set(f.t0.Add(5 * time.Hour))
	assert.Equal(t, 0, s.Sweep(ctx).Sent)
	assert.Empty(t, f.reminders(t, f.alice.ID))
}

func TestSweep_RecoversAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.scheduler(Options{})
	require.NoError(t, before.Schedule(ctx, f.shift))

	// T+7h 进程重启，之前的定时器已经丢失
	f.clock.Set(f.t0.Add(7 * time.Hour))
	after := f.scheduler(Options{})

	assert.Equal(t, 1, after.Sweep(ctx).Sent)
	assert.Equal(t, 0, after.Sweep(ctx).Sent)
	require.Len(t, f.reminders(t, f.alice.ID), 1)

	// 旧进程的定时器即使触发也不会重复发送
	f.timers.all()[0].fire()
	assert.Len(t, f.reminders(t, f.alice.ID), 1)
	assert.Len(t, f.transport.SentTo(f.alice.Phone), 1)
}

func TestSchedule_PastReminderTimeSendsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.scheduler(Options{})

	f.clock.Set(f.t0.Add(10 * time.Hour))
	require.NoError(t, s.Schedule(ctx, f.shift))

	timers := f.timers.all()
	require.Len(t, timers, 1)
	assert.Equal(t, time.Duration(0), timers[0].d)

	timers[0].fire()
	assert.Len(t, f.reminders(t, f.alice.ID), 1)
	assert.Empty(t, s.Pending())
}

func TestSchedule_StartedShiftIgnored(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(Options{})

	f.clock.Set(f.t0.Add(31 * time.Hour))
	require.NoError(t, s.Schedule(context.Background(), f.shift))
	assert.Empty(t, f.timers.all())
}

func TestReassignment_FirstEmployeeNeverReminded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.scheduler(Options{})

	require.NoError(t, s.Schedule(ctx, f.shift))

	f.assign(t, nil)
	assert.True(t, s.Cancel(f.shift.ID, f.alice.ID))

	f.assign(t, &f.bob.ID)
	require.NoError(t, s.Schedule(ctx, f.shift))

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, f.bob.ID, pending[0].EmployeeID)

	f.clock.Set(f.t0.Add(6 * time.Hour))
	for _, timer := range f.timers.all() {
		timer.fire()
	}
	// 即使 Alice 的定时器没能取消，发送前的检查也会跳过
	f.timers.all()[0].f()
	s.Sweep(ctx)

	assert.Empty(t, f.reminders(t, f.alice.ID))
	assert.Len(t, f.reminders(t, f.bob.ID), 1)
}

func TestConcurrentTriggers_AtMostOneReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.scheduler(Options{})
	f.clock.Set(f.t0.Add(8 * time.Hour))

	k := pairKey{shiftID: f.shift.ID, employeeID: f.alice.ID}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Sweep(ctx)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.deliver(ctx, k, TriggerTimer)
		}()
	}
	wg.Wait()

	assert.Len(t, f.reminders(t, f.alice.ID), 1)
	assert.Len(t, f.transport.SentTo(f.alice.Phone), 1)
}

func TestSweep_FailedAttemptsRetryUntilCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.transport.Fail = func(string) bool { return true }
	s := f.scheduler(Options{MaxAttempts: 3})
	f.clock.Set(f.t0.Add(8 * time.Hour))

	for i := 0; i < 5; i++ {
		s.Sweep(ctx)
	}

	messages := f.reminders(t, f.alice.ID)
	require.Len(t, messages, 3)
	for _, m := range messages {
		assert.Equal(t, domain.DeliveryStatusFailed, m.Status)
	}

	outcome, err := s.deliver(ctx, pairKey{shiftID: f.shift.ID, employeeID: f.alice.ID}, TriggerSweep)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, outcome)
}

func TestSweep_FailedThenSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fail := true
	f.transport.Fail = func(string) bool { return fail }
	s := f.scheduler(Options{})
	f.clock.Set(f.t0.Add(8 * time.Hour))

	s.Sweep(ctx)
	fail = false
	assert.Equal(t, 1, s.Sweep(ctx).Sent)
	assert.Equal(t, 0, s.Sweep(ctx).Sent)
	assert.Len(t, f.transport.SentTo(f.alice.Phone), 1)
}

func TestSweep_SkipsOptedOutAndDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.scheduler(Options{})
	f.clock.Set(f.t0.Add(8 * time.Hour))

	alice, err := f.store.GetEmployee(ctx, f.alice.ID)
	require.NoError(t, err)
	alice.SMSOptIn = false
	require.NoError(t, f.store.UpdateEmployee(ctx, alice))

	assert.Equal(t, 0, s.Sweep(ctx).Sent)

	alice.SMSOptIn = true
	require.NoError(t, f.store.UpdateEmployee(ctx, alice))
	require.NoError(t, f.store.SetSetting(ctx, domain.SettingShiftReminderEnabled, "false"))

	assert.Equal(t, 0, s.Sweep(ctx).Sent)
	assert.Empty(t, f.reminders(t, f.alice.ID))
}

func TestSweep_ContinuesAfterBrokenShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.scheduler(Options{})

	broken := f.createShift(t, "XYZ789", f.t0.Add(30*time.Hour), &f.bob.ID)
	broken.Date = "not-a-date"
	require.NoError(t, f.store.UpdateShift(ctx, broken))

	f.clock.Set(f.t0.Add(8 * time.Hour))
	result := s.Sweep(ctx)

	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.Sent)
}

func TestSweep_RegistersFutureReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.scheduler(Options{})

	assert.Equal(t, 1, s.Sweep(ctx).Scheduled)
	assert.Equal(t, 0, s.Sweep(ctx).Scheduled)
	require.Len(t, s.Pending(), 1)

	assert.Equal(t, 1, s.CancelShift(f.shift.ID))
	assert.Empty(t, s.Pending())
}

func TestSchedule_UsesConfiguredHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSetting(ctx, domain.SettingShiftReminderHours, "2"))
	s := f.scheduler(Options{})

	require.NoError(t, s.Schedule(ctx, f.shift))
	assert.Equal(t, 28*time.Hour, f.timers.all()[0].d)
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	km := newKeyedMutex()
	k := pairKey{shiftID: 1, employeeID: 2}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock(k)
			unlock()
		}()
	}
	wg.Wait()

	assert.Empty(t, km.locks)
}
