package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

// queryEmployees 通过 LEFT JOIN 一次性查出员工及其所属区域，再在内存中组装
func (r *Repository) queryEmployees(ctx context.Context, where string, args ...any) ([]*domain.Employee, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			e.id,
			e.name,
			e.phone,
			e.position_id,
			e.status,
			e.sms_opt_in,
			e.created_at,
			e.version,
			ea.area_id
		FROM employees e
		LEFT JOIN employee_areas ea ON e.id = ea.employee_id
		` + where + `
		ORDER BY e.id, ea.area_id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]*domain.Employee, 0)
	var current *domain.Employee
	for rows.Next() {
		e := &domain.Employee{}
		var areaID sql.NullInt64

		dst := []any{&e.ID, &e.Name, &e.Phone, &e.PositionID, &e.Status, &e.SMSOptIn, &e.CreatedAt, &e.Version, &areaID}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if current == nil || current.ID != e.ID {
			// 说明此时是第一次查到这个员工
			e.AreaIDs = make([]int64, 0)
			employees = append(employees, e)
			current = e
		}

		// 如果 area_id 为空，则表示这个员工不属于任何区域
		if areaID.Valid {
			current.AreaIDs = append(current.AreaIDs, areaID.Int64)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) GetEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	employees, err := r.queryEmployees(ctx, `WHERE e.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, domain.ErrNotFound
	}
	return employees[0], nil
}

func (r *Repository) GetEmployeeByPhone(ctx context.Context, phone string) (*domain.Employee, error) {
	employees, err := r.queryEmployees(ctx, `WHERE e.phone = $1`, phone)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, domain.ErrNotFound
	}
	return employees[0], nil
}

func (r *Repository) GetEmployees(ctx context.Context, filter domain.EmployeeFilter) ([]*domain.Employee, error) {
	if filter.Status != nil {
		return r.queryEmployees(ctx, `WHERE e.status = $1`, *filter.Status)
	}
	return r.queryEmployees(ctx, ``)
}

func (r *Repository) GetAreaEmployees(ctx context.Context, areaID int64) ([]*domain.Employee, error) {
	return r.queryEmployees(ctx, `WHERE e.id IN (SELECT employee_id FROM employee_areas WHERE area_id = $1)`, areaID)
}

func (r *Repository) CreateEmployee(ctx context.Context, e *domain.Employee) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO employees (name, phone, position_id, status, sms_opt_in)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`
	args := []any{e.Name, e.Phone, e.PositionID, e.Status, e.SMSOptIn}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&e.ID, &e.CreatedAt, &e.Version); err != nil {
		return err
	}

	if err := insertEmployeeAreas(ctx, tx, e); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateEmployee 同时替换员工的区域归属
func (r *Repository) UpdateEmployee(ctx context.Context, e *domain.Employee) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE employees
		SET
			name = $1,
			phone = $2,
			position_id = $3,
			status = $4,
			sms_opt_in = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version
	`
	args := []any{e.Name, e.Phone, e.PositionID, e.Status, e.SMSOptIn, e.ID, e.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&e.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrConflict(ctx, "employees", e.ID)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM employee_areas WHERE employee_id = $1`, e.ID); err != nil {
		return err
	}
	if err := insertEmployeeAreas(ctx, tx, e); err != nil {
		return err
	}

	return tx.Commit()
}

func insertEmployeeAreas(ctx context.Context, tx *sql.Tx, e *domain.Employee) error {
	for _, areaID := range e.AreaIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO employee_areas (employee_id, area_id) VALUES ($1, $2)`, e.ID, areaID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) CreateArea(ctx context.Context, a *domain.Area) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, `INSERT INTO areas (name) VALUES ($1) RETURNING id`, a.Name).Scan(&a.ID)
}

func (r *Repository) GetArea(ctx context.Context, id int64) (*domain.Area, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	a := &domain.Area{ID: id}
	if err := r.dbpool.QueryRowContext(ctx, `SELECT name FROM areas WHERE id = $1`, id).Scan(&a.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *Repository) CreatePosition(ctx context.Context, p *domain.Position) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, `INSERT INTO positions (name) VALUES ($1) RETURNING id`, p.Name).Scan(&p.ID)
}

func (r *Repository) GetPosition(ctx context.Context, id int64) (*domain.Position, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	p := &domain.Position{ID: id}
	if err := r.dbpool.QueryRowContext(ctx, `SELECT name FROM positions WHERE id = $1`, id).Scan(&p.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}
