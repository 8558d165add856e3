package hold

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
	"github.com/pawdesk/scheduling-api/internal/service/availability"
	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
	"github.com/pawdesk/scheduling-api/pkg/metrics"
)

const DefaultTTL = 5 * time.Minute

// Service manages tentative reservation holds. A hold's entries occupy
// capacity exactly like a confirmed appointment until the hold expires, is
// released, or is converted into an appointment.
type Service struct {
	repo         repository.HoldRepository
	availability *availability.Service
	locker       repository.ReservationLocker
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(repo repository.HoldRepository, availabilitySvc *availability.Service, locker repository.ReservationLocker, m *metrics.Metrics) *Service {
	return &Service{
		repo:         repo,
		availability: availabilitySvc,
		locker:       locker,
		metrics:      m,
		now:          time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create places a hold after re-checking availability under the reservation
// lock, so a racing writer cannot slip in between check and write.
func (s *Service) Create(ctx context.Context, actor model.Actor, locationID, customerID uuid.UUID, entries []model.TentativeEntry, ttl time.Duration) (*model.BookingHold, error) {
	if len(entries) == 0 {
		return nil, apperrors.Validation("a hold needs at least one tentative entry")
	}
	for _, e := range entries {
		if (e.StaffID == nil) == (e.ResourceTypeID == nil) {
			return nil, apperrors.Validation("each entry must claim exactly one of a staff member or a resource type")
		}
		if !e.EndTime.After(e.StartTime) {
			return nil, apperrors.Validation("entry end must be after start")
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	hold := &model.BookingHold{
		ID:         uuid.New(),
		CompanyID:  actor.CompanyID,
		LocationID: locationID,
		CustomerID: customerID,
		Entries:    entries,
		ExpiresAt:  s.now().Add(ttl),
	}

	err := s.locker.WithReservation(ctx, actor.CompanyID, locationID, func(txCtx context.Context) error {
		result, err := s.availability.Check(txCtx, actor.CompanyID, locationID, requirementsFor(entries), model.CommitmentExclusion{})
		if err != nil {
			return err
		}
		if !result.Available {
			return apperrors.SlotConflict(result.Conflicts)
		}
		return s.repo.Create(txCtx, hold)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.HoldsCreated.Inc()
	}
	return hold, nil
}

// Release removes a hold. Idempotent: releasing an already released,
// converted or expired hold is a no-op.
func (s *Service) Release(ctx context.Context, companyID, id uuid.UUID) error {
	_, err := s.repo.Delete(ctx, companyID, id)
	return err
}

// Take claims a hold for conversion into an appointment. It must run inside
// the caller's reservation transaction: the hold row is deleted in the same
// transaction that creates the appointment, so capacity is never counted
// twice during the handoff. An expired hold cannot be converted.
func (s *Service) Take(ctx context.Context, companyID, id uuid.UUID) (*model.BookingHold, error) {
	hold, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if hold.Expired(s.now()) {
		return nil, apperrors.NotFound("hold")
	}

	deleted, err := s.repo.Delete(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, apperrors.NotFound("hold")
	}

	if s.metrics != nil {
		s.metrics.HoldsConverted.Inc()
	}
	return hold, nil
}

func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (*model.BookingHold, error) {
	hold, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if hold.Expired(s.now()) {
		return nil, apperrors.NotFound("hold")
	}
	return hold, nil
}

func (s *Service) ListActive(ctx context.Context, companyID, locationID uuid.UUID) ([]*model.BookingHold, error) {
	return s.repo.ListActive(ctx, companyID, locationID, s.now())
}

// SweepExpired physically reaps expired holds. Correctness never depends on
// it running: expired holds are already excluded from conflict queries.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil && count > 0 {
		s.metrics.HoldsExpiredSwept.Add(float64(count))
	}
	return count, nil
}

// requirementsFor maps tentative entries onto availability requirements.
// Buffers were applied when the entries were resolved. Resource entries
// sharing a type and window collapse into one requirement with the summed
// quantity, so a hold asking for N units is checked as N units, not as N
// independent one-unit asks that each fit while only one unit is free.
func requirementsFor(entries []model.TentativeEntry) []model.Requirement {
	type slotKey struct {
		resourceTypeID uuid.UUID
		start, end     int64
	}
	reqs := make([]model.Requirement, 0, len(entries))
	grouped := make(map[slotKey]int)
	for _, e := range entries {
		if e.StaffID != nil {
			reqs = append(reqs, model.Requirement{
				StaffID: e.StaffID,
				Window:  model.TimeWindow{Start: e.StartTime, End: e.EndTime},
			})
			continue
		}
		key := slotKey{*e.ResourceTypeID, e.StartTime.UnixNano(), e.EndTime.UnixNano()}
		if i, ok := grouped[key]; ok {
			reqs[i].Quantity++
			continue
		}
		resourceTypeID := *e.ResourceTypeID
		grouped[key] = len(reqs)
		reqs = append(reqs, model.Requirement{
			ResourceTypeID: &resourceTypeID,
			Quantity:       1,
			Window:         model.TimeWindow{Start: e.StartTime, End: e.EndTime},
		})
	}
	return reqs
}
