package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/shift"
)

const (
	replyHelp         = "Commands: YES <code> to request a shift, WITHDRAW <code> to cancel a request, CONFIRM <code> to confirm an assignment, SHIFTS for open shifts, STATUS for your shifts, STOP to unsubscribe."
	replyUnknown      = "Sorry, we didn't understand that. Reply HELP for a list of commands."
	replyNeedCode     = "Please include the shift code, for example YES ABC234. Reply SHIFTS to see open shifts."
	replyStopped      = "You will no longer receive messages. Reply START to resubscribe."
	replyStarted      = "You are subscribed to shift messages again. Reply STOP to unsubscribe."
	replyDeclined     = "OK, no problem. Reply SHIFTS to see other open shifts."
	replyFailed       = "Sorry, something went wrong. Please try again later."
	replyNoOpenShifts = "There are no open shifts right now."

	maxListedShifts = 5
)

type result struct {
	shiftID int64
	reply   string
}

func (i *Interpreter) execute(ctx context.Context, cmd Command, e *domain.Employee) result {
	var (
		res result
		err error
	)

	switch cmd.Kind {
	case KindYes:
		res, err = i.expressInterest(ctx, cmd, e)
	case KindWithdraw:
		res, err = i.withdraw(ctx, cmd, e)
	case KindConfirm:
		res, err = i.confirm(ctx, cmd, e)
	case KindShifts:
		res, err = i.listOpen(ctx, e)
	case KindStatus:
		res, err = i.status(ctx, e)
	case KindStop:
		res, err = i.setOptIn(ctx, e, false)
	case KindStart:
		res, err = i.setOptIn(ctx, e, true)
	case KindNo:
		res = result{reply: replyDeclined}
	case KindHelp:
		res = result{reply: replyHelp}
	default:
		res = result{reply: replyUnknown}
	}

	if err != nil {
		i.logger.Error("执行短信指令失败", "command", cmd.Kind, "employeeID", e.ID, "error", err)
		res.reply = replyFailed
	}
	return res
}

// byCode 指令带了代码时只按代码精确匹配，格式不对或不存在时返回 nil 和提示语
func (i *Interpreter) byCode(ctx context.Context, cmd Command) (*domain.Shift, string, error) {
	noMatch := fmt.Sprintf("No shift matches code %s. Reply SHIFTS to see open shifts.", cmd.Arg)
	if cmd.Code == "" {
		return nil, noMatch, nil
	}

	s, err := i.store.GetShiftBySMSCode(ctx, cmd.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, noMatch, nil
		}
		return nil, "", err
	}
	return s, "", nil
}

// lastNotified 员工最近一次收到通知且仍然空缺的班次，已被认领或取消的通知会被跳过
func (i *Interpreter) lastNotified(ctx context.Context, e *domain.Employee) (*domain.Shift, error) {
	messages, err := i.store.GetMessages(ctx, domain.MessageFilter{
		Direction:   domain.MessageDirectionOutbound,
		MessageType: domain.MessageTypeShiftNotification,
		EmployeeID:  &e.ID,
	})
	if err != nil {
		return nil, err
	}

	for _, m := range slices.Backward(messages) {
		if m.RelatedShiftID == nil {
			continue
		}
		s, err := i.store.GetShift(ctx, *m.RelatedShiftID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if i.shifts.EffectiveStatus(s) != domain.ShiftStatusAvailable {
			continue
		}
		return s, nil
	}
	return nil, nil
}

func (i *Interpreter) expressInterest(ctx context.Context, cmd Command, e *domain.Employee) (result, error) {
	var target *domain.Shift
	if cmd.Arg != "" {
		s, reply, err := i.byCode(ctx, cmd)
		if s == nil {
			return result{reply: reply}, err
		}
		target = s
	} else {
		s, err := i.lastNotified(ctx, e)
		if err != nil {
			return result{}, err
		}
		if s == nil {
			return result{reply: replyNeedCode}, nil
		}
		target = s
	}

	res := result{shiftID: target.ID}
	created, err := i.shifts.ExpressInterest(ctx, actorOf(e), target.ID, e.ID)
	if err != nil {
		var te *shift.TransitionError
		switch {
		case errors.As(err, &te):
			res.reply = fmt.Sprintf("Sorry, shift %s is no longer open.", describe(target))
			return res, nil
		case errors.Is(err, shift.ErrEmployeeInactive):
			res.reply = "Your account is inactive, please contact your supervisor."
			return res, nil
		}
		return res, err
	}

	if created {
		res.reply = fmt.Sprintf("Thanks! Your request for %s has been received. Reply WITHDRAW %s to cancel.", describe(target), target.SMSCode)
	} else {
		res.reply = fmt.Sprintf("You have already requested %s.", describe(target))
	}
	return res, nil
}

// pendingInterests 只保留仍然空缺的班次上的报名
func (i *Interpreter) pendingInterests(ctx context.Context, e *domain.Employee) ([]*domain.Shift, error) {
	interests, err := i.store.GetShiftInterests(ctx, domain.ShiftInterestFilter{EmployeeID: &e.ID})
	if err != nil {
		return nil, err
	}

	shifts := make([]*domain.Shift, 0, len(interests))
	for _, si := range interests {
		s, err := i.store.GetShift(ctx, si.ShiftID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if i.shifts.EffectiveStatus(s) == domain.ShiftStatusAvailable {
			shifts = append(shifts, s)
		}
	}
	return shifts, nil
}

func (i *Interpreter) withdraw(ctx context.Context, cmd Command, e *domain.Employee) (result, error) {
	var target *domain.Shift
	if cmd.Arg != "" {
		s, reply, err := i.byCode(ctx, cmd)
		if s == nil {
			return result{reply: reply}, err
		}
		target = s
	} else {
		pending, err := i.pendingInterests(ctx, e)
		if err != nil {
			return result{}, err
		}
		switch len(pending) {
		case 0:
			return result{reply: "You have no pending shift requests."}, nil
		case 1:
			target = pending[0]
		default:
			return result{reply: "You have several pending requests: " + codes(pending) + ". Reply WITHDRAW <code>."}, nil
		}
	}

	res := result{shiftID: target.ID}
	deleted, err := i.shifts.WithdrawInterest(ctx, actorOf(e), target.ID, e.ID)
	if err != nil {
		return res, err
	}
	if deleted {
		res.reply = fmt.Sprintf("Your request for %s has been withdrawn.", describe(target))
	} else {
		res.reply = fmt.Sprintf("You have no request for %s.", describe(target))
	}
	return res, nil
}

// upcomingAssignments 分配给该员工且尚未开始的班次
func (i *Interpreter) upcomingAssignments(ctx context.Context, e *domain.Employee) ([]*domain.Shift, error) {
	claimed, err := i.store.GetShifts(ctx, domain.ShiftFilter{Statuses: []domain.ShiftStatus{domain.ShiftStatusClaimed}})
	if err != nil {
		return nil, err
	}

	now := i.now()
	shifts := make([]*domain.Shift, 0)
	for _, s := range claimed {
		if !s.IsAssignedTo(e.ID) {
			continue
		}
		start, err := s.StartAt(i.loc)
		if err != nil || !now.Before(start) {
			continue
		}
		shifts = append(shifts, s)
	}
	return shifts, nil
}

func (i *Interpreter) confirm(ctx context.Context, cmd Command, e *domain.Employee) (result, error) {
	var target *domain.Shift
	if cmd.Arg != "" {
		s, reply, err := i.byCode(ctx, cmd)
		if s == nil {
			return result{reply: reply}, err
		}
		target = s
	} else {
		upcoming, err := i.upcomingAssignments(ctx, e)
		if err != nil {
			return result{}, err
		}
		switch len(upcoming) {
		case 0:
			return result{reply: "You have no upcoming assigned shifts."}, nil
		case 1:
			target = upcoming[0]
		default:
			return result{reply: "You have several assigned shifts: " + codes(upcoming) + ". Reply CONFIRM <code>."}, nil
		}
	}

	res := result{shiftID: target.ID}
	if _, err := i.shifts.Confirm(ctx, actorOf(e), target.ID, e.ID); err != nil {
		var te *shift.TransitionError
		if errors.As(err, &te) {
			res.reply = fmt.Sprintf("Shift %s is not assigned to you.", describe(target))
			return res, nil
		}
		return res, err
	}
	res.reply = fmt.Sprintf("Thanks, you are confirmed for %s.", describe(target))
	return res, nil
}

func (i *Interpreter) listOpen(ctx context.Context, e *domain.Employee) (result, error) {
	// 没有所属区域的员工看不到任何空缺班次
	if len(e.AreaIDs) == 0 {
		return result{reply: replyNoOpenShifts}, nil
	}

	views, err := i.shifts.ListOpen(ctx, e.AreaIDs)
	if err != nil {
		return result{}, err
	}
	if len(views) == 0 {
		return result{reply: replyNoOpenShifts}, nil
	}

	shifts := make([]*domain.Shift, 0, maxListedShifts)
	for _, v := range views[:min(len(views), maxListedShifts)] {
		shifts = append(shifts, v.Shift)
	}
	return result{reply: "Open shifts: " + list(shifts) + ". Reply YES <code> to request one."}, nil
}

func (i *Interpreter) status(ctx context.Context, e *domain.Employee) (result, error) {
	assigned, err := i.upcomingAssignments(ctx, e)
	if err != nil {
		return result{}, err
	}
	pending, err := i.pendingInterests(ctx, e)
	if err != nil {
		return result{}, err
	}
	if len(assigned) == 0 && len(pending) == 0 {
		return result{reply: "You have no upcoming shifts or pending requests."}, nil
	}

	parts := make([]string, 0, 2)
	if len(assigned) > 0 {
		parts = append(parts, "Assigned: "+list(assigned))
	}
	if len(pending) > 0 {
		parts = append(parts, "Pending: "+list(pending))
	}
	return result{reply: strings.Join(parts, ". ") + "."}, nil
}

// setOptIn 版本冲突时重新读取员工后重试
func (i *Interpreter) setOptIn(ctx context.Context, e *domain.Employee, optIn bool) (result, error) {
	reply := replyStopped
	action := domain.AuditEmployeeOptOut
	if optIn {
		reply = replyStarted
		action = domain.AuditEmployeeOptIn
	}

	current := e
	for attempt := 0; attempt < 3; attempt++ {
		if current.SMSOptIn == optIn {
			return result{reply: reply}, nil
		}

		updated := current.Clone()
		updated.SMSOptIn = optIn
		err := i.store.UpdateEmployee(ctx, updated)
		if err == nil {
			i.auditor.LogEvent(action, actorOf(e).Name, domain.AuditTargetEmployee, e.ID, nil)
			return result{reply: reply}, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return result{}, err
		}

		if current, err = i.store.GetEmployee(ctx, e.ID); err != nil {
			return result{}, err
		}
	}
	return result{}, domain.ErrVersionConflict
}

func describe(s *domain.Shift) string {
	return fmt.Sprintf("%s %s %s (%s)", s.Date, strings.TrimSuffix(s.StartTime, ":00"), s.Location, s.SMSCode)
}

func list(shifts []*domain.Shift) string {
	parts := make([]string, 0, len(shifts))
	for _, s := range shifts {
		parts = append(parts, describe(s))
	}
	return strings.Join(parts, "; ")
}

func codes(shifts []*domain.Shift) string {
	parts := make([]string, 0, len(shifts))
	for _, s := range shifts {
		parts = append(parts, s.SMSCode)
	}
	return strings.Join(parts, ", ")
}
