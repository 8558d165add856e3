package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
)

type Service struct {
	repo   repository.AuditRepository
	logger *zerolog.Logger
}

func NewService(repo repository.AuditRepository, logger *zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log records a scheduling mutation. Audit failures are logged, never
// surfaced: the mutation itself has already committed.
func (s *Service) Log(ctx context.Context, actor model.Actor, entityType string, entityID uuid.UUID, action string, changes interface{}) {
	var raw json.RawMessage
	if changes != nil {
		b, err := json.Marshal(changes)
		if err != nil {
			s.logger.Error().Err(err).Str("action", action).Msg("failed to marshal audit changes")
		} else {
			raw = b
		}
	}

	entry := &model.AuditLog{
		ID:         uuid.New(),
		CompanyID:  actor.CompanyID,
		UserID:     actor.UserID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    raw,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Str("entity_type", entityType).Msg("failed to write audit log")
	}
}

func (s *Service) List(ctx context.Context, companyID, entityID uuid.UUID) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, companyID, entityID)
}
