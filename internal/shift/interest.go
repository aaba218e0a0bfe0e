package shift

import (
	"context"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

// ExpressInterest 只能报名尚未开始的空缺班次，重复报名视为成功，返回 false
func (s *Service) ExpressInterest(ctx context.Context, actor domain.Actor, shiftID, employeeID int64) (bool, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return false, err
	}
	if effective := s.EffectiveStatus(shift); effective != domain.ShiftStatusAvailable {
		return false, &TransitionError{ShiftID: shift.ID, From: effective, Op: OpExpressInterest}
	}

	employee, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	if employee.Status != domain.EmployeeStatusActive {
		return false, ErrEmployeeInactive
	}

	created, err := s.store.CreateShiftInterest(ctx, &domain.ShiftInterest{ShiftID: shift.ID, EmployeeID: employee.ID})
	if err != nil {
		return false, err
	}
	if created {
		s.auditor.LogEvent(domain.AuditInterestCreated, actor.Name, domain.AuditTargetShift, shift.ID, map[string]any{
			"employeeID": employee.ID,
		})
	}
	return created, nil
}

// WithdrawInterest 删除报名记录，记录不存在时返回 false
func (s *Service) WithdrawInterest(ctx context.Context, actor domain.Actor, shiftID, employeeID int64) (bool, error) {
	deleted, err := s.store.DeleteShiftInterest(ctx, shiftID, employeeID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.auditor.LogEvent(domain.AuditInterestDeleted, actor.Name, domain.AuditTargetShift, shiftID, map[string]any{
			"employeeID": employeeID,
		})
	}
	return deleted, nil
}
