package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

func TestUpdateShift_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	shift := &domain.Shift{SMSCode: "ABC234", Status: domain.ShiftStatusAvailable}
	require.NoError(t, s.CreateShift(ctx, shift))

	a, err := s.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	b, err := s.GetShift(ctx, shift.ID)
	require.NoError(t, err)

	a.Location = "A 楼"
	require.NoError(t, s.UpdateShift(ctx, a))

	b.Location = "B 楼"
	assert.ErrorIs(t, s.UpdateShift(ctx, b), domain.ErrVersionConflict)

	got, err := s.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, "A 楼", got.Location)
}

func TestCreateShift_DuplicateSMSCode(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateShift(ctx, &domain.Shift{SMSCode: "ABC234"}))
	assert.ErrorIs(t, s.CreateShift(ctx, &domain.Shift{SMSCode: "ABC234"}), domain.ErrDuplicateSMSCode)
}

func TestUpdateShift_SMSCodeImmutable(t *testing.T) {
	ctx := context.Background()
	s := New()

	shift := &domain.Shift{SMSCode: "ABC234"}
	require.NoError(t, s.CreateShift(ctx, shift))

	shift.SMSCode = "XYZ789"
	require.NoError(t, s.UpdateShift(ctx, shift))

	got, err := s.GetShiftBySMSCode(ctx, "abc234")
	require.NoError(t, err)
	assert.Equal(t, shift.ID, got.ID)
}

func TestCreateShiftInterest_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.CreateShiftInterest(ctx, &domain.ShiftInterest{ShiftID: 1, EmployeeID: 2})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateShiftInterest(ctx, &domain.ShiftInterest{ShiftID: 1, EmployeeID: 2})
	require.NoError(t, err)
	assert.False(t, created)

	shiftID := int64(1)
	interests, err := s.GetShiftInterests(ctx, domain.ShiftInterestFilter{ShiftID: &shiftID})
	require.NoError(t, err)
	assert.Len(t, interests, 1)

	deleted, err := s.DeleteShiftInterest(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteShiftInterest(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGetMessages_Filter(t *testing.T) {
	ctx := context.Background()
	s := New()

	shiftID, employeeID := int64(10), int64(20)
	require.NoError(t, s.CreateMessage(ctx, &domain.Message{MessageType: domain.MessageTypeShiftReminder, RelatedShiftID: &shiftID, EmployeeID: &employeeID}))
	require.NoError(t, s.CreateMessage(ctx, &domain.Message{MessageType: domain.MessageTypeShiftNotification, RelatedShiftID: &shiftID, EmployeeID: &employeeID}))
	require.NoError(t, s.CreateMessage(ctx, &domain.Message{MessageType: domain.MessageTypeShiftReminder}))

	got, err := s.GetMessages(ctx, domain.MessageFilter{MessageType: domain.MessageTypeShiftReminder, RelatedShiftID: &shiftID, EmployeeID: &employeeID})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetAreaEmployees(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateEmployee(ctx, &domain.Employee{Name: "a", AreaIDs: []int64{1, 2}}))
	require.NoError(t, s.CreateEmployee(ctx, &domain.Employee{Name: "b", AreaIDs: []int64{2}}))
	require.NoError(t, s.CreateEmployee(ctx, &domain.Employee{Name: "c", AreaIDs: []int64{3}}))

	got, err := s.GetAreaEmployees(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}
