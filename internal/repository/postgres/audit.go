package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pawdesk/scheduling-api/internal/model"
)

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, company_id, user_id, entity_type, entity_id, action, changes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		log.ID,
		log.CompanyID,
		log.UserID,
		log.EntityType,
		log.EntityID,
		log.Action,
		log.Changes,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, companyID, entityID uuid.UUID) ([]*model.AuditLog, error) {
	query := `
		SELECT id, company_id, user_id, entity_type, entity_id, action, changes, created_at
		FROM audit_logs
		WHERE company_id = $1 AND entity_id = $2
		ORDER BY created_at DESC
	`
	var logs []*model.AuditLog
	err := sqlx.SelectContext(ctx, r.ext(ctx), &logs, query, companyID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
