package shift

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/notify"
)

type NotifyResult struct {
	Recipients     int  `json:"recipients"`
	NotifyAllAreas bool `json:"notifyAllAreas"`
}

// Repost 重新通知岗位匹配的员工，只适用于尚未开始的空缺班次
func (s *Service) Repost(ctx context.Context, actor domain.Actor, shiftID int64, notifyAllAreas bool) (*NotifyResult, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if effective := s.EffectiveStatus(shift); effective != domain.ShiftStatusAvailable {
		return nil, &TransitionError{ShiftID: shift.ID, From: effective, Op: OpRepost}
	}

	res, err := s.broadcastShift(ctx, actor, shift, notify.EventRepost, notifyAllAreas, true)
	if err != nil {
		return nil, err
	}

	s.auditor.LogEvent(domain.AuditShiftReposted, actor.Name, domain.AuditTargetShift, shift.ID, map[string]any{
		"recipients":     len(res.Employees),
		"notifyAllAreas": res.NotifyAllAreas,
	})
	return &NotifyResult{Recipients: len(res.Employees), NotifyAllAreas: res.NotifyAllAreas}, nil
}

// Notify 快速通知，除已取消和已过期外的状态都可以使用
func (s *Service) Notify(ctx context.Context, actor domain.Actor, shiftID int64, notifyAllAreas bool) (*NotifyResult, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	switch effective := s.EffectiveStatus(shift); effective {
	case domain.ShiftStatusCancelled, domain.ShiftStatusExpired:
		return nil, &TransitionError{ShiftID: shift.ID, From: effective, Op: OpNotify}
	}

	res, err := s.broadcastShift(ctx, actor, shift, notify.EventQuickNotify, notifyAllAreas, true)
	if err != nil {
		return nil, err
	}

	s.auditor.LogEvent(domain.AuditShiftNotified, actor.Name, domain.AuditTargetShift, shift.ID, map[string]any{
		"recipients":     len(res.Employees),
		"notifyAllAreas": res.NotifyAllAreas,
	})
	return &NotifyResult{Recipients: len(res.Employees), NotifyAllAreas: res.NotifyAllAreas}, nil
}

const maxBroadcastLength = 480

type BroadcastInput struct {
	// AreaIDs 为空表示所有区域，需要 shifts:all_areas 权限
	AreaIDs []int64
	Text    string
}

// Broadcast 群发自定义短信，只发送给在职且未退订的员工
func (s *Service) Broadcast(ctx context.Context, actor domain.Actor, in BroadcastInput) (int, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return 0, invalidInput("群发内容不能为空")
	}
	if utf8.RuneCountInString(text) > maxBroadcastLength {
		return 0, invalidInput("群发内容不能超过 %d 个字符", maxBroadcastLength)
	}

	var pool []*domain.Employee
	if len(in.AreaIDs) == 0 {
		if !actor.Permissions.Has(domain.PermissionShiftsAllAreas) {
			return 0, ErrAllAreasNotAllowed
		}
		active := domain.EmployeeStatusActive
		employees, err := s.store.GetEmployees(ctx, domain.EmployeeFilter{Status: &active})
		if err != nil {
			return 0, err
		}
		pool = employees
	} else {
		seen := make(map[int64]bool)
		for _, areaID := range in.AreaIDs {
			employees, err := s.store.GetAreaEmployees(ctx, areaID)
			if err != nil {
				return 0, err
			}
			for _, e := range employees {
				if !seen[e.ID] {
					seen[e.ID] = true
					pool = append(pool, e)
				}
			}
		}
	}

	recipients := make([]*domain.Employee, 0, len(pool))
	for _, e := range pool {
		if e.Notifiable() {
			recipients = append(recipients, e)
		}
	}

	s.submit(ctx, notify.Job{Event: notify.EventBroadcast, EmployeeIDs: employeeIDs(recipients), Text: text})
	s.auditor.LogEvent(domain.AuditBroadcastSent, actor.Name, domain.AuditTargetEmployee, 0, map[string]any{
		"recipients": len(recipients),
		"areaIDs":    in.AreaIDs,
	})
	return len(recipients), nil
}
