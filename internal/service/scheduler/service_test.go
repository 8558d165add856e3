package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/service/audit"
	"github.com/pawdesk/scheduling-api/internal/service/availability"
	"github.com/pawdesk/scheduling-api/internal/service/catalog"
	holdService "github.com/pawdesk/scheduling-api/internal/service/hold"
	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
)

// fakeStore backs every repository interface with in-memory maps, so the
// engine's check-then-write flow can be exercised end to end. Commitments
// are derived from stored claims and hold entries the same way the database
// query derives them.
type fakeStore struct {
	appointments map[uuid.UUID]*model.Appointment
	claims       map[uuid.UUID][]model.ClaimEntry
	holds        map[uuid.UUID]*model.BookingHold

	locations    map[uuid.UUID]*model.Location
	customers    map[uuid.UUID]*model.Customer
	pets         map[uuid.UUID]*model.Pet
	staff        map[uuid.UUID]*model.Staff
	serviceItems map[uuid.UUID]*model.ServiceItem
	resources    []*model.Resource
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appointments: make(map[uuid.UUID]*model.Appointment),
		claims:       make(map[uuid.UUID][]model.ClaimEntry),
		holds:        make(map[uuid.UUID]*model.BookingHold),
		locations:    make(map[uuid.UUID]*model.Location),
		customers:    make(map[uuid.UUID]*model.Customer),
		pets:         make(map[uuid.UUID]*model.Pet),
		staff:        make(map[uuid.UUID]*model.Staff),
		serviceItems: make(map[uuid.UUID]*model.ServiceItem),
	}
}

// AppointmentRepository

func (s *fakeStore) Create(_ context.Context, apt *model.Appointment) error {
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	s.appointments[apt.ID] = apt
	return nil
}

func (s *fakeStore) Get(_ context.Context, companyID, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := s.appointments[id]
	if !ok || apt.CompanyID != companyID {
		return nil, apperrors.NotFound("appointment")
	}
	copied := *apt
	return &copied, nil
}

func (s *fakeStore) Update(_ context.Context, apt *model.Appointment) error {
	if _, ok := s.appointments[apt.ID]; !ok {
		return apperrors.NotFound("appointment")
	}
	s.appointments[apt.ID] = apt
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, apt *model.Appointment, from model.AppointmentStatus) error {
	stored, ok := s.appointments[apt.ID]
	if !ok || stored.CompanyID != apt.CompanyID || stored.Status != from {
		return apperrors.InvalidTransition(string(from), string(apt.Status))
	}
	s.appointments[apt.ID] = apt
	return nil
}

func (s *fakeStore) SetExternalEventID(_ context.Context, companyID, id uuid.UUID, externalEventID string) error {
	apt, ok := s.appointments[id]
	if !ok || apt.CompanyID != companyID {
		return apperrors.NotFound("appointment")
	}
	apt.ExternalEventID = &externalEventID
	return nil
}

func (s *fakeStore) ReplaceClaims(_ context.Context, appointmentID uuid.UUID, claims []model.ClaimEntry) error {
	s.claims[appointmentID] = claims
	return nil
}

func (s *fakeStore) List(context.Context, uuid.UUID, *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

// CommitmentRepository

func (s *fakeStore) ActiveCommitments(_ context.Context, _, _ uuid.UUID, window model.TimeWindow, now time.Time, exclude model.CommitmentExclusion) ([]model.Commitment, error) {
	var out []model.Commitment
	for aptID, claims := range s.claims {
		apt, ok := s.appointments[aptID]
		if !ok || apt.Status.IsTerminal() {
			continue
		}
		if exclude.AppointmentID != nil && aptID == *exclude.AppointmentID {
			continue
		}
		for _, c := range claims {
			w := model.TimeWindow{Start: c.StartTime, End: c.EndTime}
			if window.Overlaps(w) {
				id := aptID
				out = append(out, model.Commitment{
					AppointmentID:  &id,
					StaffID:        c.StaffID,
					ResourceTypeID: c.ResourceTypeID,
					StartTime:      c.StartTime,
					EndTime:        c.EndTime,
				})
			}
		}
	}
	for holdID, hold := range s.holds {
		if hold.Expired(now) {
			continue
		}
		if exclude.HoldID != nil && holdID == *exclude.HoldID {
			continue
		}
		for _, e := range hold.Entries {
			w := model.TimeWindow{Start: e.StartTime, End: e.EndTime}
			if window.Overlaps(w) {
				id := holdID
				out = append(out, model.Commitment{
					HoldID:         &id,
					StaffID:        e.StaffID,
					ResourceTypeID: e.ResourceTypeID,
					StartTime:      e.StartTime,
					EndTime:        e.EndTime,
				})
			}
		}
	}
	return out, nil
}

// HoldRepository

func (s *fakeStore) CreateHold(_ context.Context, hold *model.BookingHold) error {
	s.holds[hold.ID] = hold
	return nil
}

func (s *fakeStore) GetHold(_ context.Context, companyID, id uuid.UUID) (*model.BookingHold, error) {
	hold, ok := s.holds[id]
	if !ok || hold.CompanyID != companyID {
		return nil, apperrors.NotFound("hold")
	}
	return hold, nil
}

func (s *fakeStore) DeleteHold(_ context.Context, companyID, id uuid.UUID) (bool, error) {
	hold, ok := s.holds[id]
	if !ok || hold.CompanyID != companyID {
		return false, nil
	}
	delete(s.holds, id)
	return true, nil
}

func (s *fakeStore) ListActiveHolds(_ context.Context, companyID, locationID uuid.UUID, now time.Time) ([]*model.BookingHold, error) {
	return nil, nil
}

func (s *fakeStore) DeleteExpiredHolds(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// CatalogRepository

func (s *fakeStore) GetLocation(_ context.Context, companyID, id uuid.UUID) (*model.Location, error) {
	l, ok := s.locations[id]
	if !ok || l.CompanyID != companyID {
		return nil, apperrors.NotFound("location")
	}
	return l, nil
}

func (s *fakeStore) GetCustomer(_ context.Context, companyID, id uuid.UUID) (*model.Customer, error) {
	c, ok := s.customers[id]
	if !ok || c.CompanyID != companyID {
		return nil, apperrors.NotFound("customer")
	}
	return c, nil
}

func (s *fakeStore) GetPet(_ context.Context, companyID, id uuid.UUID) (*model.Pet, error) {
	p, ok := s.pets[id]
	if !ok || p.CompanyID != companyID {
		return nil, apperrors.NotFound("pet")
	}
	return p, nil
}

func (s *fakeStore) GetStaff(_ context.Context, companyID, id uuid.UUID) (*model.Staff, error) {
	st, ok := s.staff[id]
	if !ok || st.CompanyID != companyID {
		return nil, apperrors.NotFound("staff")
	}
	return st, nil
}

func (s *fakeStore) GetServiceItem(_ context.Context, companyID, id uuid.UUID) (*model.ServiceItem, error) {
	item, ok := s.serviceItems[id]
	if !ok || item.CompanyID != companyID {
		return nil, apperrors.NotFound("service item")
	}
	return item, nil
}

func (s *fakeStore) CountActiveResources(_ context.Context, companyID, locationID, resourceTypeID uuid.UUID) (int, error) {
	count := 0
	for _, r := range s.resources {
		if r.CompanyID == companyID && r.LocationID == locationID && r.ResourceTypeID == resourceTypeID && r.Active {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) ListResources(_ context.Context, companyID, locationID, resourceTypeID uuid.UUID) ([]*model.Resource, error) {
	var out []*model.Resource
	for _, r := range s.resources {
		if r.CompanyID == companyID && r.LocationID == locationID && r.ResourceTypeID == resourceTypeID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// holdRepoAdapter exposes the store's hold methods under the repository
// interface's method names.
type holdRepoAdapter struct{ store *fakeStore }

func (a holdRepoAdapter) Create(ctx context.Context, hold *model.BookingHold) error {
	return a.store.CreateHold(ctx, hold)
}
func (a holdRepoAdapter) Get(ctx context.Context, companyID, id uuid.UUID) (*model.BookingHold, error) {
	return a.store.GetHold(ctx, companyID, id)
}
func (a holdRepoAdapter) Delete(ctx context.Context, companyID, id uuid.UUID) (bool, error) {
	return a.store.DeleteHold(ctx, companyID, id)
}
func (a holdRepoAdapter) ListActive(ctx context.Context, companyID, locationID uuid.UUID, now time.Time) ([]*model.BookingHold, error) {
	return a.store.ListActiveHolds(ctx, companyID, locationID, now)
}
func (a holdRepoAdapter) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return a.store.DeleteExpiredHolds(ctx, before)
}

type fakeLocker struct {
	calls int
	err   error
}

func (f *fakeLocker) WithReservation(ctx context.Context, _, _ uuid.UUID, fn func(ctx context.Context) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(ctx)
}

type fakeAuditRepo struct{}

func (fakeAuditRepo) Create(context.Context, *model.AuditLog) error { return nil }
func (fakeAuditRepo) List(context.Context, uuid.UUID, uuid.UUID) ([]*model.AuditLog, error) {
	return nil, nil
}

type fakeEmitter struct{ types []string }

func (f *fakeEmitter) Emit(_ context.Context, eventType string, _ uuid.UUID, _ interface{}) {
	f.types = append(f.types, eventType)
}

// fixture wires the engine against a seeded store with a frozen clock.
type fixture struct {
	store   *fakeStore
	svc     *Service
	holds   *holdService.Service
	locker  *fakeLocker
	emitter *fakeEmitter
	now     time.Time

	actor     model.Actor
	company   uuid.UUID
	location  uuid.UUID
	customer  uuid.UUID
	pet       uuid.UUID
	staffMain uuid.UUID
	tableType uuid.UUID
	item      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   newFakeStore(),
		locker:  &fakeLocker{},
		emitter: &fakeEmitter{},
		now:     time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
	}
	f.company = uuid.New()
	f.actor = model.Actor{CompanyID: f.company, UserID: uuid.New(), Role: "scheduler"}
	f.location = uuid.New()
	f.customer = uuid.New()
	f.pet = uuid.New()
	f.staffMain = uuid.New()
	f.tableType = uuid.New()
	f.item = uuid.New()

	f.store.locations[f.location] = &model.Location{Base: model.Base{ID: f.location}, CompanyID: f.company, Name: "Downtown"}
	f.store.customers[f.customer] = &model.Customer{Base: model.Base{ID: f.customer}, CompanyID: f.company, Name: "Sam"}
	f.store.pets[f.pet] = &model.Pet{Base: model.Base{ID: f.pet}, CompanyID: f.company, CustomerID: f.customer, Name: "Rex", Species: "dog"}
	f.store.staff[f.staffMain] = &model.Staff{Base: model.Base{ID: f.staffMain}, CompanyID: f.company, LocationID: f.location, Name: "Alex", Active: true}
	f.store.serviceItems[f.item] = &model.ServiceItem{
		Base:            model.Base{ID: f.item},
		CompanyID:       f.company,
		ServiceID:       uuid.New(),
		Name:            "Full Groom - Large",
		DurationMinutes: 60,
		RequiresStaff:   true,
		Requirements: []model.ResourceRequirement{{
			ID:                 uuid.New(),
			ServiceItemID:      f.item,
			ResourceTypeID:     f.tableType,
			Quantity:           1,
			DurationMinutes:    30,
			BufferAfterMinutes: 10,
		}},
	}
	for i := 0; i < 2; i++ {
		f.store.resources = append(f.store.resources, &model.Resource{
			Base:           model.Base{ID: uuid.New()},
			CompanyID:      f.company,
			LocationID:     f.location,
			ResourceTypeID: f.tableType,
			Active:         true,
		})
	}

	clock := func() time.Time { return f.now }
	availabilitySvc := availability.NewService(f.store, f.store).WithClock(clock)
	f.holds = holdService.NewService(holdRepoAdapter{f.store}, availabilitySvc, f.locker, nil).WithClock(clock)
	f.svc = NewService(f.store, availabilitySvc, f.holds, catalog.NewService(f.store), f.locker, auditSvc(), f.emitter, nil).WithClock(clock)
	return f
}

func auditSvc() *audit.Service {
	nop := zerolog.Nop()
	return audit.NewService(fakeAuditRepo{}, &nop)
}

func (f *fixture) createRequest(start time.Time) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		LocationID:    f.location.String(),
		CustomerID:    f.customer.String(),
		PetID:         f.pet.String(),
		ServiceItemID: f.item.String(),
		StaffID:       f.staffMain.String(),
		StartTime:     start,
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	apt, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, start.Add(60*time.Minute), apt.EndTime)
	assert.Equal(t, f.actor.UserID, apt.ScheduledBy)
	assert.Equal(t, []string{model.EventAppointmentCreated}, f.emitter.types)

	claims := f.store.claims[apt.ID]
	require.Len(t, claims, 2)

	var staffClaim, tableClaim *model.ClaimEntry
	for i := range claims {
		if claims[i].StaffID != nil {
			staffClaim = &claims[i]
		} else {
			tableClaim = &claims[i]
		}
	}
	require.NotNil(t, staffClaim)
	require.NotNil(t, tableClaim)

	// Staff is held for the whole visit; the table for its 30m step plus the
	// 10m cleanup buffer.
	assert.Equal(t, start, staffClaim.StartTime)
	assert.Equal(t, start.Add(60*time.Minute), staffClaim.EndTime)
	assert.Equal(t, f.tableType, *tableClaim.ResourceTypeID)
	assert.Equal(t, start, tableClaim.StartTime)
	assert.Equal(t, start.Add(40*time.Minute), tableClaim.EndTime)
}

func TestCreateAppointmentAssignsDistinctIDs(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	first, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)
	second, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start.Add(2*time.Hour)))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.NotEqual(t, uuid.Nil, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	// Each appointment keeps its own claim set.
	assert.Len(t, f.store.claims[first.ID], 2)
	assert.Len(t, f.store.claims[second.ID], 2)
}

func TestCreateAppointmentStaffDoubleBooked(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)

	// Same staff member, overlapping window.
	_, err = f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start.Add(30*time.Minute)))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindBookingConflict))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.NotEmpty(t, appErr.Conflicts)
	assert.Equal(t, model.ConflictKindStaff, appErr.Conflicts[0].Kind)
}

func TestCreateAppointmentBackToBackSucceeds(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)

	// The next visit starts exactly when the first ends.
	_, err = f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start.Add(60*time.Minute)))
	require.NoError(t, err)
}

func TestCreateAppointmentResourceExhausted(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	// Two other staff members occupy both tables over the window.
	for i := 0; i < 2; i++ {
		staffID := uuid.New()
		f.store.staff[staffID] = &model.Staff{Base: model.Base{ID: staffID}, CompanyID: f.company, LocationID: f.location, Active: true}
		req := f.createRequest(start)
		req.StaffID = staffID.String()
		_, err := f.svc.CreateAppointment(context.Background(), f.actor, req)
		require.NoError(t, err)
	}

	_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindBookingConflict))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)

	kinds := make(map[model.ConflictKind]bool)
	for _, c := range appErr.Conflicts {
		kinds[c.Kind] = true
	}
	// Same staff and no free table: both failures reported together.
	assert.True(t, kinds[model.ConflictKindStaff])
	assert.True(t, kinds[model.ConflictKindResource])
}

func TestCreateAppointmentFromHold(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	entries, err := f.svc.ResolveTentative(context.Background(), f.actor, f.item, &f.staffMain, start)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	hold, err := f.holds.Create(context.Background(), f.actor, f.location, f.customer, entries, 0)
	require.NoError(t, err)

	// The held capacity blocks an unrelated booking for the same staff.
	_, err = f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	assert.True(t, apperrors.Is(err, apperrors.KindBookingConflict))

	// Converting the hold does not collide with its own entries.
	req := f.createRequest(start)
	req.HoldID = hold.ID.String()
	apt, err := f.svc.CreateAppointment(context.Background(), f.actor, req)
	require.NoError(t, err)

	assert.NotContains(t, f.store.holds, hold.ID)
	assert.Contains(t, f.store.appointments, apt.ID)
}

func TestCreateAppointmentExpiredHold(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	entries, err := f.svc.ResolveTentative(context.Background(), f.actor, f.item, &f.staffMain, start)
	require.NoError(t, err)
	hold, err := f.holds.Create(context.Background(), f.actor, f.location, f.customer, entries, time.Minute)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)

	// The expired hold no longer blocks a competing booking.
	apt, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)
	assert.Contains(t, f.store.appointments, apt.ID)

	// And the hold itself can no longer be converted.
	req := f.createRequest(start)
	req.HoldID = hold.ID.String()
	_, err = f.svc.CreateAppointment(context.Background(), f.actor, req)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestUpdateAppointmentReschedule(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	apt, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)

	// Moving 15m later overlaps the old slot; the appointment's own claims
	// are excluded so the move succeeds.
	newStart := start.Add(15 * time.Minute)
	newEnd := newStart.Add(60 * time.Minute)
	moved, err := f.svc.UpdateAppointment(context.Background(), f.actor, apt.ID, &model.UpdateAppointmentRequest{
		StartTime: &newStart,
		EndTime:   &newEnd,
	})
	require.NoError(t, err)

	assert.Equal(t, newStart, moved.StartTime)
	claims := f.store.claims[apt.ID]
	require.Len(t, claims, 2)
	for _, c := range claims {
		assert.True(t, !c.StartTime.Before(newStart))
	}
}

func TestUpdateAppointmentStretchedEndOccupiesFullWindow(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	apt, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)

	// Stretch the visit by an hour without touching the start.
	newEnd := start.Add(2 * time.Hour)
	moved, err := f.svc.UpdateAppointment(context.Background(), f.actor, apt.ID, &model.UpdateAppointmentRequest{
		EndTime: &newEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, newEnd, moved.EndTime)

	// The staff claim follows the stored window to the new end.
	var staffClaim *model.ClaimEntry
	for i, c := range f.store.claims[apt.ID] {
		if c.StaffID != nil {
			staffClaim = &f.store.claims[apt.ID][i]
		}
	}
	require.NotNil(t, staffClaim)
	assert.Equal(t, newEnd, staffClaim.EndTime)

	// The staff member is occupied through the stretched hour, so a booking
	// in that hour conflicts.
	_, err = f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start.Add(time.Hour)))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindBookingConflict))
}

func TestUpdateAppointmentNotesOnlySkipsReservation(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	apt, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)
	lockCalls := f.locker.calls

	notes := "bring treats"
	updated, err := f.svc.UpdateAppointment(context.Background(), f.actor, apt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, lockCalls, f.locker.calls)
}

func TestUpdateAppointmentTerminal(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	apt, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)
	f.store.appointments[apt.ID].Status = model.AppointmentStatusCanceled

	notes := "too late"
	_, err = f.svc.UpdateAppointment(context.Background(), f.actor, apt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition))
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	t.Run("pet belongs to another customer", func(t *testing.T) {
		otherCustomer := uuid.New()
		f.store.customers[otherCustomer] = &model.Customer{Base: model.Base{ID: otherCustomer}, CompanyID: f.company}
		req := f.createRequest(start)
		req.CustomerID = otherCustomer.String()

		_, err := f.svc.CreateAppointment(context.Background(), f.actor, req)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("staff required", func(t *testing.T) {
		req := f.createRequest(start)
		req.StaffID = ""

		_, err := f.svc.CreateAppointment(context.Background(), f.actor, req)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("staff at another location", func(t *testing.T) {
		elsewhere := uuid.New()
		f.store.staff[elsewhere] = &model.Staff{Base: model.Base{ID: elsewhere}, CompanyID: f.company, LocationID: uuid.New(), Active: true}
		req := f.createRequest(start)
		req.StaffID = elsewhere.String()

		_, err := f.svc.CreateAppointment(context.Background(), f.actor, req)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("species not served", func(t *testing.T) {
		for _, r := range f.store.resources {
			r.Species = []string{"cat"}
		}
		defer func() {
			for _, r := range f.store.resources {
				r.Species = nil
			}
		}()

		_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("unknown location", func(t *testing.T) {
		req := f.createRequest(start)
		req.LocationID = uuid.New().String()

		_, err := f.svc.CreateAppointment(context.Background(), f.actor, req)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})
}

func TestCheckAvailabilityReportsConflict(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)

	result, err := f.svc.CheckAvailability(context.Background(), f.actor, f.location, f.item, &f.staffMain, start)
	require.NoError(t, err)
	assert.False(t, result.Available)

	free, err := f.svc.CheckAvailability(context.Background(), f.actor, f.location, f.item, &f.staffMain, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, free.Available)
}

func TestListOpenSlots(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	booked := day.Add(10 * time.Hour)

	_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(booked))
	require.NoError(t, err)

	slots, err := f.svc.ListOpenSlots(context.Background(), f.actor, f.location, f.item, &f.staffMain, day)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	open := make(map[time.Time]bool, len(slots))
	for _, s := range slots {
		open[s] = true
	}

	// Starts whose hour-long visit would overlap the 10:00-11:00 booking are
	// gone; the adjacent starts survive.
	assert.True(t, open[day.Add(9*time.Hour)])
	assert.True(t, open[day.Add(11*time.Hour)])
	assert.False(t, open[day.Add(9*time.Hour+30*time.Minute)])
	assert.False(t, open[booked])
	assert.False(t, open[day.Add(10*time.Hour+30*time.Minute)])

	// Every slot starts on the grid and fits inside the day.
	for _, s := range slots {
		assert.Zero(t, s.Sub(day)%slotGranularity)
		assert.False(t, s.Add(60*time.Minute).After(day.AddDate(0, 0, 1)))
	}
}

func TestReserveRetriesSerializationFailures(t *testing.T) {
	f := newFixture(t)
	f.locker.err = &pq.Error{Code: "40001"}
	start := f.now.Add(time.Hour)

	_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))
	assert.Equal(t, maxReservationAttempts, f.locker.calls)
}

func TestReserveDoesNotRetryDomainErrors(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(time.Hour)

	_, err := f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	require.NoError(t, err)
	callsAfterFirst := f.locker.calls

	_, err = f.svc.CreateAppointment(context.Background(), f.actor, f.createRequest(start))
	assert.True(t, apperrors.Is(err, apperrors.KindBookingConflict))
	assert.Equal(t, callsAfterFirst+1, f.locker.calls)
}
