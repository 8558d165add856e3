package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
	"github.com/pawdesk/scheduling-api/internal/service/availability"
	"github.com/pawdesk/scheduling-api/internal/service/audit"
	"github.com/pawdesk/scheduling-api/internal/service/catalog"
	"github.com/pawdesk/scheduling-api/internal/service/event"
	"github.com/pawdesk/scheduling-api/internal/service/hold"
	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
	"github.com/pawdesk/scheduling-api/pkg/metrics"
)

// maxReservationAttempts bounds retries of the write step on storage
// contention. Conflicts are never retried; only serialization-class
// failures are, and after the budget the caller gets a generic failure
// distinct from BOOKING_CONFLICT.
const maxReservationAttempts = 3

// Service is the scheduling engine: it validates scoping, resolves service
// item requirements, runs the availability check and the write as one
// reservation transaction, and emits domain events after commit.
type Service struct {
	appointments repository.AppointmentRepository
	availability *availability.Service
	holds        *hold.Service
	catalog      *catalog.Service
	locker       repository.ReservationLocker
	auditor      *audit.Service
	events       event.Emitter
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	availabilitySvc *availability.Service,
	holds *hold.Service,
	catalogSvc *catalog.Service,
	locker repository.ReservationLocker,
	auditor *audit.Service,
	events event.Emitter,
	m *metrics.Metrics,
) *Service {
	return &Service{
		appointments: appointments,
		availability: availabilitySvc,
		holds:        holds,
		catalog:      catalogSvc,
		locker:       locker,
		auditor:      auditor,
		events:       events,
		metrics:      m,
		now:          time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CheckAvailability resolves a service item against a start time and
// reports whether every requirement can be satisfied. Pure read.
func (s *Service) CheckAvailability(ctx context.Context, actor model.Actor, locationID, serviceItemID uuid.UUID, staffID *uuid.UUID, start time.Time) (*model.AvailabilityResult, error) {
	if _, err := s.catalog.GetLocation(ctx, actor.CompanyID, locationID); err != nil {
		return nil, err
	}
	item, err := s.catalog.GetServiceItem(ctx, actor.CompanyID, serviceItemID)
	if err != nil {
		return nil, err
	}

	end := start.Add(time.Duration(item.DurationMinutes) * time.Minute)
	reqs, _, err := s.resolveRequirements(item, staffID, start, end)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AvailabilityChecks.Inc()
	}
	return s.availability.Check(ctx, actor.CompanyID, locationID, reqs, model.CommitmentExclusion{})
}

// slotGranularity is the step between candidate start times when listing a
// day's open slots.
const slotGranularity = 30 * time.Minute

// ListOpenSlots walks one calendar day in the location's timezone and
// reports every start time at which all of the service item's requirements
// can be satisfied. Pure read: a listed slot can still be lost to a racing
// booking and is only secured by a hold or an appointment.
func (s *Service) ListOpenSlots(ctx context.Context, actor model.Actor, locationID, serviceItemID uuid.UUID, staffID *uuid.UUID, day time.Time) ([]time.Time, error) {
	location, err := s.catalog.GetLocation(ctx, actor.CompanyID, locationID)
	if err != nil {
		return nil, err
	}
	item, err := s.catalog.GetServiceItem(ctx, actor.CompanyID, serviceItemID)
	if err != nil {
		return nil, err
	}
	if staffID != nil {
		if err := s.validateStaff(ctx, actor, locationID, staffID, item); err != nil {
			return nil, err
		}
	}

	tz, err := time.LoadLocation(location.Timezone)
	if err != nil {
		tz = time.UTC
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, tz)
	dayEnd := dayStart.AddDate(0, 0, 1)
	duration := time.Duration(item.DurationMinutes) * time.Minute

	slots := []time.Time{}
	for start := dayStart; !start.Add(duration).After(dayEnd); start = start.Add(slotGranularity) {
		reqs, _, err := s.resolveRequirements(item, staffID, start, start.Add(duration))
		if err != nil {
			return nil, err
		}
		result, err := s.availability.Check(ctx, actor.CompanyID, locationID, reqs, model.CommitmentExclusion{})
		if err != nil {
			return nil, err
		}
		if result.Available {
			slots = append(slots, start)
		}
	}

	if s.metrics != nil {
		s.metrics.AvailabilityChecks.Inc()
	}
	return slots, nil
}

// CreateAppointment places a new appointment. The availability check and
// the insert run in one transaction under the location's reservation lock,
// so concurrent requests for the same slot serialize and exactly one wins.
// When a hold id is supplied the hold is consumed in the same transaction.
func (s *Service) CreateAppointment(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	draft, item, err := s.validateDraft(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	draft.EndTime = draft.StartTime.Add(time.Duration(item.DurationMinutes) * time.Minute)
	reqs, claims, err := s.resolveRequirements(item, draft.StaffID, draft.StartTime, draft.EndTime)
	if err != nil {
		return nil, err
	}
	draft.ID = uuid.New()

	var holdID *uuid.UUID
	if req.HoldID != "" {
		id, err := uuid.Parse(req.HoldID)
		if err != nil {
			return nil, apperrors.Validation("invalid hold id")
		}
		holdID = &id
	}

	err = s.reserve(ctx, actor.CompanyID, draft.LocationID, func(txCtx context.Context) error {
		if holdID != nil {
			// Consuming the hold and creating the appointment commit
			// together, so capacity is never double-counted mid-handoff.
			if _, err := s.holds.Take(txCtx, actor.CompanyID, *holdID); err != nil {
				return err
			}
		}

		result, err := s.availability.Check(txCtx, actor.CompanyID, draft.LocationID, reqs, model.CommitmentExclusion{HoldID: holdID})
		if err != nil {
			return err
		}
		if !result.Available {
			return apperrors.BookingConflict(result.Conflicts)
		}

		if err := s.appointments.Create(txCtx, draft); err != nil {
			return err
		}
		return s.appointments.ReplaceClaims(txCtx, draft.ID, claimsFor(draft, claims))
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentsCreated.Inc()
	}
	s.auditor.Log(ctx, actor, "appointment", draft.ID, "create", draft)
	s.events.Emit(ctx, model.EventAppointmentCreated, actor.CompanyID, draft)

	return draft, nil
}

// UpdateAppointment moves or amends an appointment. Any change to the
// window or staffing re-runs the availability check with the appointment's
// own claims excluded, so a move does not collide with itself.
func (s *Service) UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if apt.Status.IsTerminal() {
		return nil, apperrors.InvalidTransition(string(apt.Status), string(apt.Status))
	}

	rescheduling := false
	if req.StartTime != nil {
		apt.StartTime = *req.StartTime
		rescheduling = true
	}
	if req.EndTime != nil {
		apt.EndTime = *req.EndTime
		rescheduling = true
	}
	if req.StaffID != nil {
		apt.StaffID = req.StaffID
		rescheduling = true
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}

	if !apt.Window().Valid() {
		return nil, apperrors.Validation("appointment end must be after start")
	}

	if !rescheduling {
		if err := s.appointments.Update(ctx, apt); err != nil {
			return nil, err
		}
		s.auditor.Log(ctx, actor, "appointment", apt.ID, "update", req)
		s.events.Emit(ctx, model.EventAppointmentUpdated, actor.CompanyID, apt)
		return apt, nil
	}

	item, err := s.catalog.GetServiceItem(ctx, actor.CompanyID, apt.ServiceItemID)
	if err != nil {
		return nil, err
	}
	if req.StaffID != nil {
		if err := s.validateStaff(ctx, actor, apt.LocationID, apt.StaffID, item); err != nil {
			return nil, err
		}
	}

	// Requirements and claims derive from the window being persisted, so a
	// stretched end time occupies staff and resources through the new end.
	reqs, claims, err := s.resolveRequirements(item, apt.StaffID, apt.StartTime, apt.EndTime)
	if err != nil {
		return nil, err
	}

	err = s.reserve(ctx, actor.CompanyID, apt.LocationID, func(txCtx context.Context) error {
		result, err := s.availability.Check(txCtx, actor.CompanyID, apt.LocationID, reqs, model.CommitmentExclusion{AppointmentID: &apt.ID})
		if err != nil {
			return err
		}
		if !result.Available {
			return apperrors.BookingConflict(result.Conflicts)
		}

		if err := s.appointments.Update(txCtx, apt); err != nil {
			return err
		}
		return s.appointments.ReplaceClaims(txCtx, apt.ID, claimsFor(apt, claims))
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	s.auditor.Log(ctx, actor, "appointment", apt.ID, "reschedule", req)
	s.events.Emit(ctx, model.EventAppointmentUpdated, actor.CompanyID, apt)

	return apt, nil
}

// reserve runs fn under the location's reservation lock, retrying the write
// step a bounded number of times on serialization-class storage failures.
func (s *Service) reserve(ctx context.Context, companyID, locationID uuid.UUID, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxReservationAttempts; attempt++ {
		err = s.locker.WithReservation(ctx, companyID, locationID, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if s.metrics != nil {
			s.metrics.ReservationRetries.Inc()
		}
	}
	return apperrors.Internal(fmt.Errorf("reservation did not commit after %d attempts: %w", maxReservationAttempts, err))
}

// isRetryable reports whether err is a transient storage failure worth
// retrying. Domain errors and plain query failures are not.
func isRetryable(err error) bool {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}

func (s *Service) countConflict(err error) {
	if s.metrics == nil {
		return
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindBookingConflict:
		s.metrics.BookingConflicts.WithLabelValues("booking").Inc()
	case apperrors.KindSlotConflict:
		s.metrics.BookingConflicts.WithLabelValues("slot").Inc()
	}
}

// validateDraft checks every referenced entity exists and belongs to the
// actor's company, and that the pet's species fits the required resources.
func (s *Service) validateDraft(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, *model.ServiceItem, error) {
	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		return nil, nil, apperrors.Validation("invalid location id")
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, nil, apperrors.Validation("invalid customer id")
	}
	petID, err := uuid.Parse(req.PetID)
	if err != nil {
		return nil, nil, apperrors.Validation("invalid pet id")
	}
	serviceItemID, err := uuid.Parse(req.ServiceItemID)
	if err != nil {
		return nil, nil, apperrors.Validation("invalid service item id")
	}
	if req.StartTime.IsZero() {
		return nil, nil, apperrors.Validation("start time is required")
	}

	location, err := s.catalog.GetLocation(ctx, actor.CompanyID, locationID)
	if err != nil {
		return nil, nil, err
	}
	customer, err := s.catalog.GetCustomer(ctx, actor.CompanyID, customerID)
	if err != nil {
		return nil, nil, err
	}
	pet, err := s.catalog.GetPet(ctx, actor.CompanyID, petID)
	if err != nil {
		return nil, nil, err
	}
	if pet.CustomerID != customer.ID {
		return nil, nil, apperrors.Validation("pet does not belong to customer")
	}
	item, err := s.catalog.GetServiceItem(ctx, actor.CompanyID, serviceItemID)
	if err != nil {
		return nil, nil, err
	}

	draft := &model.Appointment{
		CompanyID:     actor.CompanyID,
		LocationID:    location.ID,
		CustomerID:    customer.ID,
		PetID:         pet.ID,
		ServiceID:     item.ServiceID,
		ServiceItemID: item.ID,
		StartTime:     req.StartTime,
		Status:        model.AppointmentStatusScheduled,
		Notes:         req.Notes,
		ScheduledBy:   actor.UserID,
	}

	if req.StaffID != "" {
		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			return nil, nil, apperrors.Validation("invalid staff id")
		}
		draft.StaffID = &staffID
	}
	if err := s.validateStaff(ctx, actor, location.ID, draft.StaffID, item); err != nil {
		return nil, nil, err
	}

	if err := s.validateSpeciesFit(ctx, actor, location.ID, pet, item); err != nil {
		return nil, nil, err
	}

	return draft, item, nil
}

func (s *Service) validateStaff(ctx context.Context, actor model.Actor, locationID uuid.UUID, staffID *uuid.UUID, item *model.ServiceItem) error {
	if staffID == nil {
		if item.RequiresStaff {
			return apperrors.Validation("service item requires a staff member")
		}
		return nil
	}

	staff, err := s.catalog.GetStaff(ctx, actor.CompanyID, *staffID)
	if err != nil {
		return err
	}
	if !staff.Active {
		return apperrors.Validation("staff member is not active")
	}
	if staff.LocationID != locationID {
		return apperrors.Validation("staff member does not work at this location")
	}
	return nil
}

// validateSpeciesFit rejects a booking when a required resource type has
// fewer species-compatible instances at the location than the requirement
// asks for. Capacity counting stays species-agnostic; this is a catalog
// constraint, not a scheduling one.
func (s *Service) validateSpeciesFit(ctx context.Context, actor model.Actor, locationID uuid.UUID, pet *model.Pet, item *model.ServiceItem) error {
	for _, req := range item.Requirements {
		resources, err := s.catalog.ListResources(ctx, actor.CompanyID, locationID, req.ResourceTypeID)
		if err != nil {
			return err
		}
		compatible := 0
		for _, r := range resources {
			if r.ServesSpecies(pet.Species) {
				compatible++
			}
		}
		if compatible < req.Quantity {
			return apperrors.Validation(fmt.Sprintf("no suitable resources of the required type for species %q", pet.Species))
		}
	}
	return nil
}

// resolveRequirements expands a service item over the [start, end) window
// into the availability index's normalized requirement list: the staff
// member for the whole visit, and each resource type for its declared
// sub-window with buffers applied. The second return value carries the
// same windows pre-buffered, ready to persist as claims.
func (s *Service) resolveRequirements(item *model.ServiceItem, staffID *uuid.UUID, start, end time.Time) ([]model.Requirement, []model.ClaimEntry, error) {
	if item.DurationMinutes <= 0 {
		return nil, nil, apperrors.Validation("service item has no duration")
	}
	if !end.After(start) {
		return nil, nil, apperrors.Validation("appointment end must be after start")
	}

	var reqs []model.Requirement
	var claims []model.ClaimEntry

	if staffID != nil {
		reqs = append(reqs, model.Requirement{
			StaffID: staffID,
			Window:  model.TimeWindow{Start: start, End: end},
		})
		claims = append(claims, model.ClaimEntry{
			StaffID:   staffID,
			StartTime: start,
			EndTime:   end,
		})
	}

	for i := range item.Requirements {
		r := &item.Requirements[i]
		subEnd := start.Add(time.Duration(r.DurationMinutes) * time.Minute)
		if subEnd.After(end) {
			subEnd = end
		}
		resourceTypeID := r.ResourceTypeID
		req := model.Requirement{
			ResourceTypeID: &resourceTypeID,
			Quantity:       r.Quantity,
			Window:         model.TimeWindow{Start: start, End: subEnd},
			BufferBefore:   time.Duration(r.BufferBeforeMinutes) * time.Minute,
			BufferAfter:    time.Duration(r.BufferAfterMinutes) * time.Minute,
		}
		reqs = append(reqs, req)

		buffered := req.BufferedWindow()
		for q := 0; q < r.Quantity; q++ {
			claims = append(claims, model.ClaimEntry{
				ResourceTypeID: &resourceTypeID,
				StartTime:      buffered.Start,
				EndTime:        buffered.End,
			})
		}
	}

	return reqs, claims, nil
}

// ResolveTentative maps a service item onto hold entries for a booking flow
// that claims the slot before checkout completes.
func (s *Service) ResolveTentative(ctx context.Context, actor model.Actor, serviceItemID uuid.UUID, staffID *uuid.UUID, start time.Time) ([]model.TentativeEntry, error) {
	item, err := s.catalog.GetServiceItem(ctx, actor.CompanyID, serviceItemID)
	if err != nil {
		return nil, err
	}
	_, claims, err := s.resolveRequirements(item, staffID, start, start.Add(time.Duration(item.DurationMinutes)*time.Minute))
	if err != nil {
		return nil, err
	}

	entries := make([]model.TentativeEntry, 0, len(claims))
	for _, c := range claims {
		entries = append(entries, model.TentativeEntry{
			StaffID:        c.StaffID,
			ResourceTypeID: c.ResourceTypeID,
			StartTime:      c.StartTime,
			EndTime:        c.EndTime,
		})
	}
	return entries, nil
}

func claimsFor(apt *model.Appointment, claims []model.ClaimEntry) []model.ClaimEntry {
	out := make([]model.ClaimEntry, len(claims))
	copy(out, claims)
	for i := range out {
		out[i].AppointmentID = apt.ID
	}
	return out
}
