package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Database.QueryTimeout = 5

	return NewRepository(cfg, db), mock
}

var shiftColumnNames = []string{
	"id", "position_id", "area_id", "location", "date", "start_time", "end_time", "requirements", "bonus",
	"status", "assigned_employee_id", "notify_all_areas", "last_notified_at", "notification_count",
	"sms_code", "created_at", "version",
}

func TestGetShift(t *testing.T) {
	repo, mock := newMockRepository(t)
	createdAt := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(shiftColumnNames).
		AddRow(int64(7), int64(1), int64(2), "1 号楼", "2026-10-20", "09:00:00", "17:00:00", "", "50.00",
			"claimed", int64(9), false, nil, int64(3), "ABC234", createdAt, int64(4))
	mock.ExpectQuery(`SELECT .* FROM shifts WHERE id = \$1`).WithArgs(int64(7)).WillReturnRows(rows)

	shift, err := repo.GetShift(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, domain.ShiftStatusClaimed, shift.Status)
	require.NotNil(t, shift.AssignedEmployeeID)
	assert.Equal(t, int64(9), *shift.AssignedEmployeeID)
	assert.True(t, shift.Bonus.Valid)
	assert.Equal(t, "50", shift.Bonus.Decimal.String())
	assert.Nil(t, shift.LastNotifiedAt)
	assert.Equal(t, int32(4), shift.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShift_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .* FROM shifts WHERE id = \$1`).WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetShift(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShift_DuplicateSMSCode(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO shifts`).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "shifts_sms_code_key"})

	err := repo.CreateShift(context.Background(), &domain.Shift{SMSCode: "ABC234", Status: domain.ShiftStatusAvailable})
	assert.ErrorIs(t, err, domain.ErrDuplicateSMSCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShift_VersionConflict(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`UPDATE shifts`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM shifts WHERE id = \$1\)`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateShift(context.Background(), &domain.Shift{ID: 7, Version: 2, Status: domain.ShiftStatusAvailable})
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShift_BumpsVersion(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`UPDATE shifts`).WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	shift := &domain.Shift{ID: 7, Version: 2, Status: domain.ShiftStatusAvailable}
	require.NoError(t, repo.UpdateShift(context.Background(), shift))
	assert.Equal(t, int32(3), shift.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShifts_StatusFilter(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM shifts WHERE status IN \(\$1\) ORDER BY id`).
		WithArgs("claimed").
		WillReturnRows(sqlmock.NewRows(shiftColumnNames))

	shifts, err := repo.GetShifts(context.Background(), domain.ShiftFilter{Statuses: []domain.ShiftStatus{domain.ShiftStatusClaimed}})
	require.NoError(t, err)
	assert.Empty(t, shifts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShiftInterest_Duplicate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO shift_interests .* ON CONFLICT \(shift_id, employee_id\) DO NOTHING`).
		WithArgs(int64(1), int64(2)).
		WillReturnError(sql.ErrNoRows)

	created, err := repo.CreateShiftInterest(context.Background(), &domain.ShiftInterest{ShiftID: 1, EmployeeID: 2})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteShiftInterest(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM shift_interests WHERE shift_id = \$1 AND employee_id = \$2`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteShiftInterest(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMessages_LedgerFilter(t *testing.T) {
	repo, mock := newMockRepository(t)
	shiftID, employeeID := int64(7), int64(9)

	columns := []string{
		"id", "direction", "employee_id", "phone", "content", "status", "provider_message_id",
		"message_type", "related_shift_id", "thread_id", "error_code", "error_message", "created_at",
	}
	rows := sqlmock.NewRows(columns).
		AddRow(int64(1), "outbound", int64(9), "+8613800138000", "reminder", "sent", "42",
			"shift_reminder", int64(7), "t", "", "", time.Now())

	mock.ExpectQuery(`FROM messages WHERE message_type = \$1 AND related_shift_id = \$2 AND employee_id = \$3`).
		WithArgs("shift_reminder", int64(7), int64(9)).
		WillReturnRows(rows)

	messages, err := repo.GetMessages(context.Background(), domain.MessageFilter{
		MessageType:    domain.MessageTypeShiftReminder,
		RelatedShiftID: &shiftID,
		EmployeeID:     &employeeID,
	})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.DeliveryStatusSent, messages[0].Status)
	require.NotNil(t, messages[0].RelatedShiftID)
	assert.Equal(t, int64(7), *messages[0].RelatedShiftID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAreaEmployees_AggregatesAreas(t *testing.T) {
	repo, mock := newMockRepository(t)
	createdAt := time.Now()

	columns := []string{"id", "name", "phone", "position_id", "status", "sms_opt_in", "created_at", "version", "area_id"}
	rows := sqlmock.NewRows(columns).
		AddRow(int64(1), "张伟", "+8613800138000", int64(3), "active", true, createdAt, int64(1), int64(2)).
		AddRow(int64(1), "张伟", "+8613800138000", int64(3), "active", true, createdAt, int64(1), int64(5)).
		AddRow(int64(4), "李娜", "+8613800138001", int64(3), "inactive", false, createdAt, int64(1), int64(2))

	mock.ExpectQuery(`FROM employees e LEFT JOIN employee_areas ea`).WithArgs(int64(2)).WillReturnRows(rows)

	employees, err := repo.GetAreaEmployees(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, []int64{2, 5}, employees[0].AreaIDs)
	assert.Equal(t, []int64{2}, employees[1].AreaIDs)
	assert.Equal(t, domain.EmployeeStatusInactive, employees[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSetting_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT value FROM settings WHERE key = \$1`).WithArgs("sms_enabled").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSetting(context.Background(), "sms_enabled")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS areas").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, schema, "shifts_sms_code_key")
}
