package repository

import (
	"context"
	"encoding/json"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

func (r *Repository) CreateAuditEvent(ctx context.Context, e *domain.AuditEvent) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (action, actor, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return r.dbpool.QueryRowContext(ctx, query, e.Action, e.Actor, e.TargetType, e.TargetID, details).Scan(&e.ID, &e.CreatedAt)
}
