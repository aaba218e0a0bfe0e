package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

func (r *Repository) GetShiftInterests(ctx context.Context, filter domain.ShiftInterestFilter) ([]*domain.ShiftInterest, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where := &whereBuilder{}
	if filter.ShiftID != nil {
		where.add("shift_id = $%d", *filter.ShiftID)
	}
	if filter.EmployeeID != nil {
		where.add("employee_id = $%d", *filter.EmployeeID)
	}

	query := `
		SELECT shift_id, employee_id, created_at FROM shift_interests
		` + where.String() + `
		ORDER BY created_at, shift_id, employee_id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	interests := make([]*domain.ShiftInterest, 0)
	for rows.Next() {
		si := &domain.ShiftInterest{}
		if err := rows.Scan(&si.ShiftID, &si.EmployeeID, &si.CreatedAt); err != nil {
			return nil, err
		}
		interests = append(interests, si)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return interests, nil
}

// CreateShiftInterest 依赖 (shift_id, employee_id) 唯一约束，重复插入时返回 false
func (r *Repository) CreateShiftInterest(ctx context.Context, si *domain.ShiftInterest) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO shift_interests (shift_id, employee_id)
		VALUES ($1, $2)
		ON CONFLICT (shift_id, employee_id) DO NOTHING
		RETURNING created_at
	`

	if err := r.dbpool.QueryRowContext(ctx, query, si.ShiftID, si.EmployeeID).Scan(&si.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (r *Repository) DeleteShiftInterest(ctx context.Context, shiftID, employeeID int64) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, `DELETE FROM shift_interests WHERE shift_id = $1 AND employee_id = $2`, shiftID, employeeID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}
