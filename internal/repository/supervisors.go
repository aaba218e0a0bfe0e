package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

func (r *Repository) CreateSupervisor(ctx context.Context, sv *domain.Supervisor) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO supervisors (username, password_hash, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	args := []any{sv.Username, sv.PasswordHash, sv.FullName, sv.Email, sv.Role}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&sv.ID, &sv.CreatedAt); err != nil {
		switch constraintName(err) {
		case "supervisors_username_key":
			return domain.ErrDuplicateUsername
		default:
			return err
		}
	}

	return nil
}

func (r *Repository) GetSupervisorByUsername(ctx context.Context, username string) (*domain.Supervisor, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, password_hash, full_name, email, role, created_at
		FROM supervisors WHERE username = $1
	`

	sv := &domain.Supervisor{Username: username}
	dst := []any{&sv.ID, &sv.PasswordHash, &sv.FullName, &sv.Email, &sv.Role, &sv.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, username).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return sv, nil
}
