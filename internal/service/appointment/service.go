package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
	"github.com/pawdesk/scheduling-api/internal/service/audit"
	"github.com/pawdesk/scheduling-api/internal/service/event"
	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
)

// Service owns the appointment state machine. Placement and moves go
// through the scheduling engine; transitions only ever shrink capacity, so
// they need no reservation lock.
type Service struct {
	repo    repository.AppointmentRepository
	auditor *audit.Service
	events  event.Emitter
	now     func() time.Time
}

func NewService(repo repository.AppointmentRepository, auditor *audit.Service, events event.Emitter) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		events:  events,
		now:     time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.repo.List(ctx, companyID, filters)
}

// Transition applies one step of the status state machine. A typed reason
// is mandatory when entering canceled or no_show; the matching timestamp is
// set exactly once, when the transition happens.
func (s *Service) Transition(ctx context.Context, actor model.Actor, id uuid.UUID, newStatus model.AppointmentStatus, reason model.StatusReason) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(apt.Status, newStatus) {
		return nil, apperrors.InvalidTransition(string(apt.Status), string(newStatus))
	}

	if newStatus == model.AppointmentStatusCanceled || newStatus == model.AppointmentStatusNoShow {
		if reason == "" {
			return nil, apperrors.MissingReason(string(newStatus))
		}
		if !reason.Valid() {
			return nil, apperrors.Validation("unknown status reason: " + string(reason))
		}
	}

	now := s.now()
	prev := apt.Status
	apt.Status = newStatus

	switch newStatus {
	case model.AppointmentStatusCheckedIn:
		apt.CheckedInAt = &now
	case model.AppointmentStatusInProgress:
		apt.StartedAt = &now
	case model.AppointmentStatusCompleted:
		apt.CompletedAt = &now
	case model.AppointmentStatusCanceled, model.AppointmentStatusNoShow:
		apt.CanceledAt = &now
		apt.CanceledBy = &actor.UserID
		apt.StatusReason = &reason
	}

	// Optimistic guard: if another writer moved the status since our read,
	// the update matches nothing and the transition is rejected instead of
	// overwriting a concurrent (possibly terminal) status.
	if err := s.repo.UpdateStatus(ctx, apt, prev); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, "appointment", apt.ID, "transition", map[string]interface{}{
		"from":   prev,
		"to":     newStatus,
		"reason": reason,
	})

	eventType := model.EventAppointmentUpdated
	if newStatus == model.AppointmentStatusCanceled || newStatus == model.AppointmentStatusNoShow {
		eventType = model.EventAppointmentCanceled
	}
	s.events.Emit(ctx, eventType, apt.CompanyID, apt)

	return apt, nil
}

// SetExternalEventID stores the external calendar event id written back by
// the calendar-sync consumer. Best effort on that side; a plain update here.
func (s *Service) SetExternalEventID(ctx context.Context, companyID, id uuid.UUID, externalEventID string) error {
	return s.repo.SetExternalEventID(ctx, companyID, id, externalEventID)
}
