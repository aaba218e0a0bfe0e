package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

const shiftColumns = `
	id, position_id, area_id, location, date::text, start_time::text, end_time::text, requirements, bonus,
	status, assigned_employee_id, notify_all_areas, last_notified_at, notification_count,
	sms_code, created_at, version
`

func scanShift(row rowScanner) (*domain.Shift, error) {
	shift := &domain.Shift{}
	var assigned sql.NullInt64
	var lastNotified sql.NullTime

	dst := []any{
		&shift.ID, &shift.PositionID, &shift.AreaID, &shift.Location, &shift.Date, &shift.StartTime, &shift.EndTime,
		&shift.Requirements, &shift.Bonus, &shift.Status, &assigned, &shift.NotifyAllAreas, &lastNotified,
		&shift.NotificationCount, &shift.SMSCode, &shift.CreatedAt, &shift.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	shift.AssignedEmployeeID = int64Ptr(assigned)
	shift.LastNotifiedAt = timePtr(lastNotified)
	return shift, nil
}

func (r *Repository) CreateShift(ctx context.Context, shift *domain.Shift) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO shifts (position_id, area_id, location, date, start_time, end_time, requirements, bonus, status, notify_all_areas, sms_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, version
	`

	args := []any{
		shift.PositionID, shift.AreaID, shift.Location, shift.Date, shift.StartTime, shift.EndTime,
		shift.Requirements, shift.Bonus, shift.Status, shift.NotifyAllAreas, shift.SMSCode,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&shift.ID, &shift.CreatedAt, &shift.Version); err != nil {
		switch constraintName(err) {
		case "shifts_sms_code_key":
			return domain.ErrDuplicateSMSCode
		default:
			return err
		}
	}

	return nil
}

func (r *Repository) GetShift(ctx context.Context, id int64) (*domain.Shift, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`

	shift, err := scanShift(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return shift, nil
}

func (r *Repository) GetShiftBySMSCode(ctx context.Context, code string) (*domain.Shift, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE sms_code = upper($1)`

	shift, err := scanShift(r.dbpool.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return shift, nil
}

func (r *Repository) GetShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where := &whereBuilder{}
	where.addIn("status", toAny(filter.Statuses))
	where.addIn("area_id", toAny(filter.AreaIDs))
	where.addIn("id", toAny(filter.IDs))

	query := `SELECT ` + shiftColumns + ` FROM shifts ` + where.String() + ` ORDER BY id`

	rows, err := r.dbpool.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]*domain.Shift, 0)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shifts, nil
}

// UpdateShift 使用 version 实现乐观锁，sms_code 和 created_at 不会被更新
func (r *Repository) UpdateShift(ctx context.Context, shift *domain.Shift) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE shifts
		SET
			position_id = $1,
			area_id = $2,
			location = $3,
			date = $4,
			start_time = $5,
			end_time = $6,
			requirements = $7,
			bonus = $8,
			status = $9,
			assigned_employee_id = $10,
			notify_all_areas = $11,
			last_notified_at = $12,
			notification_count = $13,
			version = version + 1
		WHERE id = $14 AND version = $15
		RETURNING version
	`

	args := []any{
		shift.PositionID, shift.AreaID, shift.Location, shift.Date, shift.StartTime, shift.EndTime,
		shift.Requirements, shift.Bonus, shift.Status, nullInt64(shift.AssignedEmployeeID), shift.NotifyAllAreas,
		nullTime(shift.LastNotifiedAt), shift.NotificationCount, shift.ID, shift.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&shift.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrConflict(ctx, "shifts", shift.ID)
		}
		return err
	}

	return nil
}

// missingOrConflict 区分记录不存在和版本冲突
func (r *Repository) missingOrConflict(ctx context.Context, table string, id int64) error {
	exists := false
	query := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id = $1)`
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}
