package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	CompanyID  uuid.UUID       `db:"company_id" json:"company_id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID       `db:"entity_id" json:"entity_id"`
	Action     string          `db:"action" json:"action"`
	Changes    json.RawMessage `db:"changes" json:"changes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
