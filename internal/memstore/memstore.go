// Package memstore 是一个并发安全的内存存储，实现与 repository 相同的方法集。
// 用于 STORE_DRIVER=memory 的本地开发以及各个包的测试。
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

type interestKey struct {
	shiftID    int64
	employeeID int64
}

type Store struct {
	mu sync.RWMutex

	now    func() time.Time
	nextID int64

	shifts      map[int64]*domain.Shift
	employees   map[int64]*domain.Employee
	areas       map[int64]*domain.Area
	positions   map[int64]*domain.Position
	interests   map[interestKey]*domain.ShiftInterest
	messages    []*domain.Message
	auditEvents []*domain.AuditEvent
	settings    map[string]string
	supervisors map[string]*domain.Supervisor
}

func New() *Store {
	return &Store{
		now:         time.Now,
		shifts:      make(map[int64]*domain.Shift),
		employees:   make(map[int64]*domain.Employee),
		areas:       make(map[int64]*domain.Area),
		positions:   make(map[int64]*domain.Position),
		interests:   make(map[interestKey]*domain.ShiftInterest),
		settings:    make(map[string]string),
		supervisors: make(map[string]*domain.Supervisor),
	}
}

// SetClock 替换生成 CreatedAt 所用的时钟
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

/**********************************************
 * 班次
 **********************************************/

func (s *Store) CreateShift(ctx context.Context, shift *domain.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shifts {
		if existing.SMSCode == shift.SMSCode {
			return domain.ErrDuplicateSMSCode
		}
	}

	shift.ID = s.id()
	shift.CreatedAt = s.now()
	shift.Version = 1
	s.shifts[shift.ID] = shift.Clone()
	return nil
}

func (s *Store) GetShift(ctx context.Context, id int64) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, ok := s.shifts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return shift.Clone(), nil
}

func (s *Store) GetShiftBySMSCode(ctx context.Context, code string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shifts {
		if shift.SMSCode == strings.ToUpper(code) {
			return shift.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts := make([]*domain.Shift, 0)
	for _, id := range slices.Sorted(maps.Keys(s.shifts)) {
		shift := s.shifts[id]
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, shift.Status) {
			continue
		}
		if len(filter.AreaIDs) > 0 && !slices.Contains(filter.AreaIDs, shift.AreaID) {
			continue
		}
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, shift.ID) {
			continue
		}
		shifts = append(shifts, shift.Clone())
	}
	return shifts, nil
}

// UpdateShift 使用乐观锁，成功后 shift.Version 自增
func (s *Store) UpdateShift(ctx context.Context, shift *domain.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.shifts[shift.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.Version != shift.Version {
		return domain.ErrVersionConflict
	}

	shift.Version++
	shift.SMSCode = existing.SMSCode // 短信代码在班次的生命周期内不可变
	shift.CreatedAt = existing.CreatedAt
	s.shifts[shift.ID] = shift.Clone()
	return nil
}

/**********************************************
 * 员工、区域、岗位
 **********************************************/

func (s *Store) CreateEmployee(ctx context.Context, e *domain.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.id()
	e.CreatedAt = s.now()
	e.Version = 1
	s.employees[e.ID] = e.Clone()
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) GetEmployeeByPhone(ctx context.Context, phone string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range slices.Sorted(maps.Keys(s.employees)) {
		if s.employees[id].Phone == phone {
			return s.employees[id].Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetEmployees(ctx context.Context, filter domain.EmployeeFilter) ([]*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]*domain.Employee, 0)
	for _, id := range slices.Sorted(maps.Keys(s.employees)) {
		e := s.employees[id]
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		employees = append(employees, e.Clone())
	}
	return employees, nil
}

func (s *Store) GetAreaEmployees(ctx context.Context, areaID int64) ([]*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]*domain.Employee, 0)
	for _, id := range slices.Sorted(maps.Keys(s.employees)) {
		if e := s.employees[id]; e.InArea(areaID) {
			employees = append(employees, e.Clone())
		}
	}
	return employees, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, e *domain.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.employees[e.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.Version != e.Version {
		return domain.ErrVersionConflict
	}

	e.Version++
	s.employees[e.ID] = e.Clone()
	return nil
}

func (s *Store) CreateArea(ctx context.Context, a *domain.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.id()
	c := *a
	s.areas[a.ID] = &c
	return nil
}

func (s *Store) GetArea(ctx context.Context, id int64) (*domain.Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.areas[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s *Store) CreatePosition(ctx context.Context, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id()
	c := *p
	s.positions[p.ID] = &c
	return nil
}

func (s *Store) GetPosition(ctx context.Context, id int64) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *p
	return &c, nil
}

/**********************************************
 * 班次意向
 **********************************************/

func (s *Store) GetShiftInterests(ctx context.Context, filter domain.ShiftInterestFilter) ([]*domain.ShiftInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interests := make([]*domain.ShiftInterest, 0)
	for _, si := range s.interests {
		if filter.ShiftID != nil && si.ShiftID != *filter.ShiftID {
			continue
		}
		if filter.EmployeeID != nil && si.EmployeeID != *filter.EmployeeID {
			continue
		}
		c := *si
		interests = append(interests, &c)
	}

	slices.SortFunc(interests, func(a, b *domain.ShiftInterest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ShiftID, b.ShiftID); c != 0 {
			return c
		}
		return cmp.Compare(a.EmployeeID, b.EmployeeID)
	})
	return interests, nil
}

// CreateShiftInterest 重复创建不会报错，返回 false 表示记录已存在
func (s *Store) CreateShiftInterest(ctx context.Context, si *domain.ShiftInterest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := interestKey{shiftID: si.ShiftID, employeeID: si.EmployeeID}
	if existing, ok := s.interests[key]; ok {
		si.CreatedAt = existing.CreatedAt
		return false, nil
	}

	si.CreatedAt = s.now()
	c := *si
	s.interests[key] = &c
	return true, nil
}

func (s *Store) DeleteShiftInterest(ctx context.Context, shiftID, employeeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := interestKey{shiftID: shiftID, employeeID: employeeID}
	if _, ok := s.interests[key]; !ok {
		return false, nil
	}
	delete(s.interests, key)
	return true, nil
}

/**********************************************
 * 短信记录
 **********************************************/

func cloneMessage(m *domain.Message) *domain.Message {
	c := *m
	if m.EmployeeID != nil {
		id := *m.EmployeeID
		c.EmployeeID = &id
	}
	if m.RelatedShiftID != nil {
		id := *m.RelatedShiftID
		c.RelatedShiftID = &id
	}
	return &c
}

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.messages = append(s.messages, cloneMessage(m))
	return nil
}

// GetMessages 按创建顺序返回
func (s *Store) GetMessages(ctx context.Context, filter domain.MessageFilter) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]*domain.Message, 0)
	for _, m := range s.messages {
		if filter.Direction != "" && m.Direction != filter.Direction {
			continue
		}
		if filter.MessageType != "" && m.MessageType != filter.MessageType {
			continue
		}
		if filter.RelatedShiftID != nil && (m.RelatedShiftID == nil || *m.RelatedShiftID != *filter.RelatedShiftID) {
			continue
		}
		if filter.EmployeeID != nil && (m.EmployeeID == nil || *m.EmployeeID != *filter.EmployeeID) {
			continue
		}
		if filter.ProviderMessageID != "" && m.ProviderMessageID != filter.ProviderMessageID {
			continue
		}
		messages = append(messages, cloneMessage(m))
	}
	return messages, nil
}

/**********************************************
 * 审计日志、系统设置、管理员
 **********************************************/

func (s *Store) CreateAuditEvent(ctx context.Context, e *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	c := *e
	c.Details = maps.Clone(e.Details)
	s.auditEvents = append(s.auditEvents, &c)
	return nil
}

func (s *Store) GetAuditEvents(ctx context.Context) ([]*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*domain.AuditEvent, 0, len(s.auditEvents))
	for _, e := range s.auditEvents {
		c := *e
		c.Details = maps.Clone(e.Details)
		events = append(events, &c)
	}
	return events, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.settings[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}

func (s *Store) CreateSupervisor(ctx context.Context, sv *domain.Supervisor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.supervisors[sv.Username]; ok {
		return domain.ErrDuplicateUsername
	}
	sv.ID = s.id()
	sv.CreatedAt = s.now()
	c := *sv
	s.supervisors[sv.Username] = &c
	return nil
}

func (s *Store) GetSupervisorByUsername(ctx context.Context, username string) (*domain.Supervisor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.supervisors[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *sv
	return &c, nil
}
