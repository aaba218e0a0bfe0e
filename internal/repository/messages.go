package repository

import (
	"context"
	"database/sql"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

func (r *Repository) CreateMessage(ctx context.Context, m *domain.Message) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO messages (
			direction, employee_id, phone, content, status, provider_message_id,
			message_type, related_shift_id, thread_id, error_code, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	args := []any{
		m.Direction, nullInt64(m.EmployeeID), m.Phone, m.Content, m.Status, m.ProviderMessageID,
		m.MessageType, nullInt64(m.RelatedShiftID), m.ThreadID, m.ErrorCode, m.ErrorMessage,
	}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&m.ID, &m.CreatedAt)
}

func (r *Repository) GetMessages(ctx context.Context, filter domain.MessageFilter) ([]*domain.Message, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where := &whereBuilder{}
	if filter.Direction != "" {
		where.add("direction = $%d", filter.Direction)
	}
	if filter.MessageType != "" {
		where.add("message_type = $%d", filter.MessageType)
	}
	if filter.RelatedShiftID != nil {
		where.add("related_shift_id = $%d", *filter.RelatedShiftID)
	}
	if filter.EmployeeID != nil {
		where.add("employee_id = $%d", *filter.EmployeeID)
	}
	if filter.ProviderMessageID != "" {
		where.add("provider_message_id = $%d", filter.ProviderMessageID)
	}

	query := `
		SELECT
			id, direction, employee_id, phone, content, status, provider_message_id,
			message_type, related_shift_id, thread_id, error_code, error_message, created_at
		FROM messages
		` + where.String() + `
		ORDER BY created_at, id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		m := &domain.Message{}
		var employeeID, relatedShiftID sql.NullInt64

		dst := []any{
			&m.ID, &m.Direction, &employeeID, &m.Phone, &m.Content, &m.Status, &m.ProviderMessageID,
			&m.MessageType, &relatedShiftID, &m.ThreadID, &m.ErrorCode, &m.ErrorMessage, &m.CreatedAt,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		m.EmployeeID = int64Ptr(employeeID)
		m.RelatedShiftID = int64Ptr(relatedShiftID)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
