package shift

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/eligibility"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/notify"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/utils"
)

type Store interface {
	CreateShift(ctx context.Context, shift *domain.Shift) error
	GetShift(ctx context.Context, id int64) (*domain.Shift, error)
	GetShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error)
	UpdateShift(ctx context.Context, shift *domain.Shift) error
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
	GetEmployees(ctx context.Context, filter domain.EmployeeFilter) ([]*domain.Employee, error)
	GetAreaEmployees(ctx context.Context, areaID int64) ([]*domain.Employee, error)
	GetShiftInterests(ctx context.Context, filter domain.ShiftInterestFilter) ([]*domain.ShiftInterest, error)
	CreateShiftInterest(ctx context.Context, si *domain.ShiftInterest) (bool, error)
	DeleteShiftInterest(ctx context.Context, shiftID, employeeID int64) (bool, error)
}

type Resolver interface {
	Resolve(ctx context.Context, req eligibility.Request) (*eligibility.Result, error)
}

type Reminders interface {
	Schedule(ctx context.Context, shift *domain.Shift) error
	Cancel(shiftID, employeeID int64) bool
	CancelShift(shiftID int64) int
}

type Auditor interface {
	LogEvent(action, actor, targetType string, targetID int64, details map[string]any)
}

type Options struct {
	Location     *time.Location
	Now          func() time.Time
	Logger       *slog.Logger
	GenerateCode func() string
}

// Service 班次状态机。网页端和短信指令都通过这里修改班次和报名记录。
type Service struct {
	store     Store
	resolver  Resolver
	reminders Reminders
	queue     notify.Queue
	auditor   Auditor

	loc          *time.Location
	now          func() time.Time
	logger       *slog.Logger
	generateCode func() string
}

func NewService(store Store, resolver Resolver, reminders Reminders, queue notify.Queue, auditor Auditor, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.GenerateCode == nil {
		opts.GenerateCode = utils.GenerateSMSCode
	}

	return &Service{
		store:        store,
		resolver:     resolver,
		reminders:    reminders,
		queue:        queue,
		auditor:      auditor,
		loc:          opts.Location,
		now:          opts.Now,
		logger:       opts.Logger,
		generateCode: opts.GenerateCode,
	}
}

type CreateInput struct {
	PositionID     int64
	AreaID         int64
	Location       string
	Date           string
	StartTime      string
	EndTime        string
	Requirements   string
	Bonus          decimal.NullDecimal
	NotifyAllAreas bool
	// Notify 为 true 时创建后立即通知符合条件的员工
	Notify bool
}

type CreateResult struct {
	Shift      *View `json:"shift"`
	Recipients int   `json:"recipients"`
	Downgraded bool  `json:"-"`
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*CreateResult, error) {
	shift := &domain.Shift{
		PositionID:     in.PositionID,
		AreaID:         in.AreaID,
		Location:       in.Location,
		Date:           in.Date,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Requirements:   in.Requirements,
		Bonus:          in.Bonus,
		Status:         domain.ShiftStatusAvailable,
		NotifyAllAreas: in.NotifyAllAreas && actor.Permissions.Has(domain.PermissionShiftsAllAreas),
	}
	if err := utils.ValidateShiftTime(shift); err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	if in.Bonus.Valid && in.Bonus.Decimal.IsNegative() {
		return nil, invalidInput("奖励金额不能为负数")
	}

	if err := s.insert(ctx, shift); err != nil {
		return nil, err
	}

	s.auditor.LogEvent(domain.AuditShiftCreated, actor.Name, domain.AuditTargetShift, shift.ID, map[string]any{
		"date":      shift.Date,
		"startTime": shift.StartTime,
		"areaID":    shift.AreaID,
	})

	result := &CreateResult{Shift: s.view(shift)}
	if in.Notify {
		res, err := s.broadcastShift(ctx, actor, shift, notify.EventNewShift, in.NotifyAllAreas, false)
		if err != nil {
			return nil, err
		}
		result.Recipients = len(res.Employees)
		result.Downgraded = res.Downgraded
	}

	return result, nil
}

// insert 短信代码冲突时重新生成
func (s *Service) insert(ctx context.Context, shift *domain.Shift) error {
	for attempt := 0; attempt < 5; attempt++ {
		shift.SMSCode = s.generateCode()
		if !utils.ValidateSMSCode(shift.SMSCode) {
			s.logger.Warn("生成的短信代码不合法，重新生成", "code", shift.SMSCode)
			continue
		}
		err := s.store.CreateShift(ctx, shift)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateSMSCode) {
			return err
		}
	}
	return ErrCodeExhausted
}

const maxSeriesOccurrences = 60

type SeriesInput struct {
	CreateInput
	// RRule 不含 DTSTART，从 Date 和 StartTime 开始展开，例如 FREQ=WEEKLY;COUNT=4
	RRule string
}

// CreateSeries 展开重复规则，每一次都是独立的班次，拥有各自的短信代码
func (s *Service) CreateSeries(ctx context.Context, actor domain.Actor, in SeriesInput) ([]*CreateResult, error) {
	probe := &domain.Shift{Date: in.Date, StartTime: in.StartTime, EndTime: in.EndTime}
	if err := utils.ValidateShiftTime(probe); err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	first, err := probe.StartAt(s.loc)
	if err != nil {
		return nil, invalidInput("%s", err.Error())
	}

	rule, err := rrule.StrToRRule(in.RRule)
	if err != nil {
		return nil, invalidInput("重复规则无法解析: %s", err.Error())
	}
	rule.DTStart(first)

	occurrences := rule.Between(first, first.AddDate(1, 0, 0), true)
	if len(occurrences) == 0 {
		return nil, invalidInput("重复规则没有产生任何班次")
	}
	if len(occurrences) > maxSeriesOccurrences {
		return nil, invalidInput("重复规则最多只能产生 %d 个班次", maxSeriesOccurrences)
	}

	results := make([]*CreateResult, 0, len(occurrences))
	for _, occ := range occurrences {
		one := in.CreateInput
		one.Date = occ.In(s.loc).Format(domain.ShiftDateLayout)

		res, err := s.Create(ctx, actor, one)
		if err != nil {
			return results, fmt.Errorf("创建 %s 的班次失败: %w", one.Date, err)
		}
		results = append(results, res)
	}

	return results, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	shift, err := s.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(shift), nil
}

// ListOpen 返回尚未开始的空缺班次，按开始时间排序。areaIDs 为空表示所有区域。
func (s *Service) ListOpen(ctx context.Context, areaIDs []int64) ([]*View, error) {
	shifts, err := s.store.GetShifts(ctx, domain.ShiftFilter{
		Statuses: []domain.ShiftStatus{domain.ShiftStatusAvailable},
		AreaIDs:  areaIDs,
	})
	if err != nil {
		return nil, err
	}

	views := make([]*View, 0, len(shifts))
	for _, shift := range shifts {
		v := s.view(shift)
		if v.EffectiveStatus != domain.ShiftStatusAvailable {
			continue
		}
		views = append(views, v)
	}

	slices.SortFunc(views, func(a, b *View) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return views, nil
}

// submit 提交通知任务，失败只记录日志，不影响已经完成的状态修改
func (s *Service) submit(ctx context.Context, job notify.Job) {
	if len(job.EmployeeIDs) == 0 {
		return
	}
	if err := s.queue.Submit(ctx, job); err != nil {
		s.logger.Error("无法提交通知任务", "event", job.Event, "shiftID", job.ShiftID, "error", err)
	}
}

func employeeIDs(employees []*domain.Employee) []int64 {
	ids := make([]int64, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}
	return ids
}

func (s *Service) broadcastShift(ctx context.Context, actor domain.Actor, shift *domain.Shift, event notify.EventType, notifyAllAreas, matchPosition bool) (*eligibility.Result, error) {
	res, err := s.resolver.Resolve(ctx, eligibility.Request{
		Shift:          shift,
		NotifyAllAreas: notifyAllAreas,
		Permissions:    actor.Permissions,
		MatchPosition:  matchPosition,
	})
	if err != nil {
		return nil, err
	}

	if res.Downgraded {
		s.auditor.LogEvent(domain.AuditNotifyAllAreasDowngraded, actor.Name, domain.AuditTargetShift, shift.ID, map[string]any{
			"event": string(event),
		})
	}

	s.submit(ctx, notify.Job{Event: event, ShiftID: shift.ID, EmployeeIDs: employeeIDs(res.Employees)})
	return res, nil
}
