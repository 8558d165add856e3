package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/service/audit"
	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
)

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	updated      *model.Appointment
	afterGet     func()
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) Create(_ context.Context, apt *model.Appointment) error {
	f.appointments[apt.ID] = apt
	return nil
}

func (f *fakeAppointmentRepo) Get(_ context.Context, companyID, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := f.appointments[id]
	if !ok || apt.CompanyID != companyID {
		return nil, apperrors.NotFound("appointment")
	}
	copied := *apt
	if f.afterGet != nil {
		f.afterGet()
	}
	return &copied, nil
}

func (f *fakeAppointmentRepo) Update(_ context.Context, apt *model.Appointment) error {
	f.appointments[apt.ID] = apt
	f.updated = apt
	return nil
}

func (f *fakeAppointmentRepo) UpdateStatus(_ context.Context, apt *model.Appointment, from model.AppointmentStatus) error {
	stored, ok := f.appointments[apt.ID]
	if !ok || stored.CompanyID != apt.CompanyID || stored.Status != from {
		return apperrors.InvalidTransition(string(from), string(apt.Status))
	}
	f.appointments[apt.ID] = apt
	f.updated = apt
	return nil
}

func (f *fakeAppointmentRepo) SetExternalEventID(_ context.Context, companyID, id uuid.UUID, externalEventID string) error {
	apt, ok := f.appointments[id]
	if !ok || apt.CompanyID != companyID {
		return apperrors.NotFound("appointment")
	}
	apt.ExternalEventID = &externalEventID
	return nil
}

func (f *fakeAppointmentRepo) ReplaceClaims(context.Context, uuid.UUID, []model.ClaimEntry) error {
	return nil
}

func (f *fakeAppointmentRepo) List(context.Context, uuid.UUID, *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

type fakeAuditRepo struct{ entries []*model.AuditLog }

func (f *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) List(context.Context, uuid.UUID, uuid.UUID) ([]*model.AuditLog, error) {
	return nil, nil
}

type fakeEmitter struct {
	types []string
}

func (f *fakeEmitter) Emit(_ context.Context, eventType string, _ uuid.UUID, _ interface{}) {
	f.types = append(f.types, eventType)
}

func newTestService(repo *fakeAppointmentRepo, emitter *fakeEmitter) *Service {
	nop := zerolog.Nop()
	return NewService(repo, audit.NewService(&fakeAuditRepo{}, &nop), emitter)
}

func seedAppointment(repo *fakeAppointmentRepo, companyID uuid.UUID, status model.AppointmentStatus) *model.Appointment {
	apt := &model.Appointment{
		Base:      model.Base{ID: uuid.New()},
		CompanyID: companyID,
		Status:    status,
	}
	repo.appointments[apt.ID] = apt
	return apt
}

func TestTransitionHappyPath(t *testing.T) {
	repo := newFakeAppointmentRepo()
	emitter := &fakeEmitter{}
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, actor.CompanyID, model.AppointmentStatusScheduled)

	frozen := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo, emitter).WithClock(func() time.Time { return frozen })

	got, err := svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusCheckedIn, "")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCheckedIn, got.Status)
	require.NotNil(t, got.CheckedInAt)
	assert.Equal(t, frozen, *got.CheckedInAt)
	assert.Nil(t, got.StartedAt)
	assert.Equal(t, []string{model.EventAppointmentUpdated}, emitter.types)
}

func TestTransitionFullLifecycle(t *testing.T) {
	repo := newFakeAppointmentRepo()
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, actor.CompanyID, model.AppointmentStatusScheduled)
	svc := newTestService(repo, &fakeEmitter{})

	ctx := context.Background()
	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCompleted,
	} {
		_, err := svc.Transition(ctx, actor, apt.ID, status, "")
		require.NoError(t, err, "to %s", status)
	}

	final := repo.appointments[apt.ID]
	assert.NotNil(t, final.CheckedInAt)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.CanceledAt)
}

func TestTransitionRejectsInvalidStep(t *testing.T) {
	repo := newFakeAppointmentRepo()
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, actor.CompanyID, model.AppointmentStatusScheduled)
	svc := newTestService(repo, &fakeEmitter{})

	_, err := svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusCompleted, "")
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition))
}

func TestTransitionTerminalIsImmutable(t *testing.T) {
	repo := newFakeAppointmentRepo()
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, actor.CompanyID, model.AppointmentStatusCompleted)
	svc := newTestService(repo, &fakeEmitter{})

	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusScheduled,
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusCanceled,
	} {
		_, err := svc.Transition(context.Background(), actor, apt.ID, status, model.ReasonOther)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition), "to %s", status)
	}
}

func TestTransitionCancelRequiresReason(t *testing.T) {
	repo := newFakeAppointmentRepo()
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, actor.CompanyID, model.AppointmentStatusScheduled)
	svc := newTestService(repo, &fakeEmitter{})

	_, err := svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusCanceled, "")
	assert.True(t, apperrors.Is(err, apperrors.KindMissingReason))

	_, err = svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusNoShow, "")
	assert.True(t, apperrors.Is(err, apperrors.KindMissingReason))

	_, err = svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusCanceled, "whatever")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestTransitionCancelStampsActorAndReason(t *testing.T) {
	repo := newFakeAppointmentRepo()
	emitter := &fakeEmitter{}
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, actor.CompanyID, model.AppointmentStatusCheckedIn)

	frozen := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo, emitter).WithClock(func() time.Time { return frozen })

	got, err := svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusCanceled, model.ReasonCustomerRequest)
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusCanceled, got.Status)
	assert.Equal(t, actor.UserID, *got.CanceledBy)
	assert.Equal(t, model.ReasonCustomerRequest, *got.StatusReason)
	assert.Equal(t, frozen, *got.CanceledAt)
	assert.Equal(t, []string{model.EventAppointmentCanceled}, emitter.types)
}

func TestTransitionLostRaceIsRejected(t *testing.T) {
	repo := newFakeAppointmentRepo()
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, actor.CompanyID, model.AppointmentStatusInProgress)
	svc := newTestService(repo, &fakeEmitter{})

	// A concurrent writer completes the appointment between our read and our
	// write; the guarded update must not overwrite the terminal status.
	repo.afterGet = func() {
		repo.appointments[apt.ID].Status = model.AppointmentStatusCompleted
	}

	_, err := svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusCanceled, model.ReasonCustomerRequest)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition))
	assert.Equal(t, model.AppointmentStatusCompleted, repo.appointments[apt.ID].Status)
}

func TestTransitionWrongCompanyIsNotFound(t *testing.T) {
	repo := newFakeAppointmentRepo()
	actor := model.Actor{CompanyID: uuid.New(), UserID: uuid.New()}
	apt := seedAppointment(repo, uuid.New(), model.AppointmentStatusScheduled)
	svc := newTestService(repo, &fakeEmitter{})

	_, err := svc.Transition(context.Background(), actor, apt.ID, model.AppointmentStatusCheckedIn, "")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
