package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
)

// Emitter records domain events for external consumers. Emission is fire
// and forget relative to the scheduling decision: failures are logged and
// never propagated to the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType string, companyID uuid.UUID, payload interface{})
}

// Service writes events to the outbox; the worker publishes them to the
// broker with retries. Events are emitted only after the state change that
// produced them has committed.
type Service struct {
	outboxRepo repository.OutboxRepository
	logger     *zerolog.Logger
}

func NewService(outboxRepo repository.OutboxRepository, logger *zerolog.Logger) *Service {
	return &Service{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

func (s *Service) Emit(ctx context.Context, eventType string, companyID uuid.UUID, payload interface{}) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		return
	}

	evt := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		CompanyID: companyID,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.outboxRepo.Create(ctx, evt); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to persist outbox event")
	}
}
