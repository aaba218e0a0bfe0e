package shift

import (
	"context"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/notify"
)

// Assign 从 available 变为 claimed。已被他人认领的班次需要 force 和 shifts:force_assign 权限，
// 已开始的班次需要 force，已取消的班次不能分配。
func (s *Service) Assign(ctx context.Context, actor domain.Actor, shiftID, employeeID int64, force bool) (*View, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	switch effective := s.EffectiveStatus(shift); effective {
	case domain.ShiftStatusAvailable:
	case domain.ShiftStatusClaimed:
		if shift.IsAssignedTo(employeeID) {
			return s.view(shift), nil
		}
		if !force {
			return nil, &TransitionError{ShiftID: shift.ID, From: effective, Op: OpAssign}
		}
		if !actor.Permissions.Has(domain.PermissionShiftsForceAssign) {
			return nil, ErrForceNotPermitted
		}
	case domain.ShiftStatusExpired:
		if !force {
			return nil, &TransitionError{ShiftID: shift.ID, From: effective, Op: OpAssign}
		}
	default:
		return nil, &TransitionError{ShiftID: shift.ID, From: effective, Op: OpAssign}
	}

	employee, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if employee.Status != domain.EmployeeStatusActive {
		return nil, ErrEmployeeInactive
	}

	previous := shift.AssignedEmployeeID
	shift.AssignedEmployeeID = &employee.ID
	shift.Status = domain.ShiftStatusClaimed
	if err := s.store.UpdateShift(ctx, shift); err != nil {
		return nil, err
	}

	details := map[string]any{"employeeID": employee.ID, "force": force}
	if previous != nil {
		details["previousEmployeeID"] = *previous
		s.reminders.Cancel(shift.ID, *previous)
		s.submit(ctx, notify.Job{Event: notify.EventUnassignment, ShiftID: shift.ID, EmployeeIDs: []int64{*previous}})
	}
	s.auditor.LogEvent(domain.AuditShiftAssigned, actor.Name, domain.AuditTargetShift, shift.ID, details)

	if err := s.reminders.Schedule(ctx, shift); err != nil {
		s.logger.Error("无法注册班次提醒", "shiftID", shift.ID, "employeeID", employee.ID, "error", err)
	}

	s.submit(ctx, notify.Job{Event: notify.EventAssignment, ShiftID: shift.ID, EmployeeIDs: []int64{employee.ID}})
	s.notifyFilled(ctx, shift, previous)

	return s.view(shift), nil
}

// notifyFilled 告诉其他报名的员工班次已经有人了
func (s *Service) notifyFilled(ctx context.Context, shift *domain.Shift, previous *int64) {
	interests, err := s.store.GetShiftInterests(ctx, domain.ShiftInterestFilter{ShiftID: &shift.ID})
	if err != nil {
		s.logger.Error("无法读取班次报名记录", "shiftID", shift.ID, "error", err)
		return
	}

	ids := make([]int64, 0, len(interests))
	for _, si := range interests {
		if shift.IsAssignedTo(si.EmployeeID) || (previous != nil && *previous == si.EmployeeID) {
			continue
		}
		ids = append(ids, si.EmployeeID)
	}

	s.submit(ctx, notify.Job{Event: notify.EventFilled, ShiftID: shift.ID, EmployeeIDs: ids})
}

// Unassign 只能从 claimed 变回 available，同时取消原员工的提醒
func (s *Service) Unassign(ctx context.Context, actor domain.Actor, shiftID int64) (*View, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != domain.ShiftStatusClaimed || shift.AssignedEmployeeID == nil {
		return nil, &TransitionError{ShiftID: shift.ID, From: s.EffectiveStatus(shift), Op: OpUnassign}
	}

	previous := *shift.AssignedEmployeeID
	shift.AssignedEmployeeID = nil
	shift.Status = domain.ShiftStatusAvailable
	if err := s.store.UpdateShift(ctx, shift); err != nil {
		return nil, err
	}

	s.reminders.Cancel(shift.ID, previous)
	s.auditor.LogEvent(domain.AuditShiftUnassigned, actor.Name, domain.AuditTargetShift, shift.ID, map[string]any{
		"previousEmployeeID": previous,
	})
	s.submit(ctx, notify.Job{Event: notify.EventUnassignment, ShiftID: shift.ID, EmployeeIDs: []int64{previous}})

	return s.view(shift), nil
}

// Confirm 员工确认自己被分配的班次，不改变状态
func (s *Service) Confirm(ctx context.Context, actor domain.Actor, shiftID, employeeID int64) (*View, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != domain.ShiftStatusClaimed || !shift.IsAssignedTo(employeeID) {
		return nil, &TransitionError{ShiftID: shift.ID, From: s.EffectiveStatus(shift), Op: OpConfirm}
	}

	s.auditor.LogEvent(domain.AuditShiftConfirmed, actor.Name, domain.AuditTargetShift, shift.ID, map[string]any{
		"employeeID": employeeID,
	})
	return s.view(shift), nil
}

// Cancel 进入终止状态 cancelled，清除分配并取消该班次的所有提醒
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, shiftID int64) (*View, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status == domain.ShiftStatusCancelled {
		return nil, &TransitionError{ShiftID: shift.ID, From: shift.Status, Op: OpCancel}
	}

	previous := shift.AssignedEmployeeID
	shift.AssignedEmployeeID = nil
	shift.Status = domain.ShiftStatusCancelled
	if err := s.store.UpdateShift(ctx, shift); err != nil {
		return nil, err
	}

	s.reminders.CancelShift(shift.ID)

	details := map[string]any{}
	if previous != nil {
		details["previousEmployeeID"] = *previous
		s.submit(ctx, notify.Job{Event: notify.EventCancelled, ShiftID: shift.ID, EmployeeIDs: []int64{*previous}})
	}
	s.auditor.LogEvent(domain.AuditShiftCancelled, actor.Name, domain.AuditTargetShift, shift.ID, details)

	return s.view(shift), nil
}

type BulkCancelResult struct {
	ShiftID int64  `json:"shiftID"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkCancel 逐个取消，单个失败不影响其他班次
func (s *Service) BulkCancel(ctx context.Context, actor domain.Actor, shiftIDs []int64) []BulkCancelResult {
	results := make([]BulkCancelResult, 0, len(shiftIDs))
	for _, id := range shiftIDs {
		r := BulkCancelResult{ShiftID: id}
		if _, err := s.Cancel(ctx, actor, id); err != nil {
			r.Error = err.Error()
		} else {
			r.Success = true
		}
		results = append(results, r)
	}
	return results
}
