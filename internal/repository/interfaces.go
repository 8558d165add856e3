package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pawdesk/scheduling-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository handles appointment persistence. Methods are
	// company-scoped: a lookup with the wrong company behaves as not found.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, companyID, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		// UpdateStatus persists a status transition only while the stored
		// status still equals from. A lost race surfaces as
		// INVALID_STATUS_TRANSITION, never as a silent overwrite.
		UpdateStatus(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus) error
		SetExternalEventID(ctx context.Context, companyID, id uuid.UUID, externalEventID string) error
		ReplaceClaims(ctx context.Context, appointmentID uuid.UUID, claims []model.ClaimEntry) error
		List(ctx context.Context, companyID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	}

	// CommitmentRepository reads active capacity claims: appointments in
	// non-terminal statuses and hold entries whose hold has not expired at
	// the supplied instant. Expired holds are excluded by the query even
	// when not yet physically reaped.
	CommitmentRepository interface {
		ActiveCommitments(ctx context.Context, companyID, locationID uuid.UUID, window model.TimeWindow, now time.Time, exclude model.CommitmentExclusion) ([]model.Commitment, error)
	}

	HoldRepository interface {
		Create(ctx context.Context, hold *model.BookingHold) error
		Get(ctx context.Context, companyID, id uuid.UUID) (*model.BookingHold, error)
		Delete(ctx context.Context, companyID, id uuid.UUID) (bool, error)
		ListActive(ctx context.Context, companyID, locationID uuid.UUID, now time.Time) ([]*model.BookingHold, error)
		DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	}

	// CatalogRepository provides read-only lookups against the settings-owned
	// catalogs referenced by scheduling.
	CatalogRepository interface {
		GetLocation(ctx context.Context, companyID, id uuid.UUID) (*model.Location, error)
		GetCustomer(ctx context.Context, companyID, id uuid.UUID) (*model.Customer, error)
		GetPet(ctx context.Context, companyID, id uuid.UUID) (*model.Pet, error)
		GetStaff(ctx context.Context, companyID, id uuid.UUID) (*model.Staff, error)
		GetServiceItem(ctx context.Context, companyID, id uuid.UUID) (*model.ServiceItem, error)
		CountActiveResources(ctx context.Context, companyID, locationID, resourceTypeID uuid.UUID) (int, error)
		ListResources(ctx context.Context, companyID, locationID, resourceTypeID uuid.UUID) ([]*model.Resource, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, evt *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, companyID, entityID uuid.UUID) ([]*model.AuditLog, error)
	}

	// ReservationLocker serializes the check-then-write sequence for one
	// company+location. fn runs inside a transaction holding the lock; every
	// repository call made with the ctx it receives joins that transaction.
	// At most one reserving writer per location proceeds at a time.
	ReservationLocker interface {
		WithReservation(ctx context.Context, companyID, locationID uuid.UUID, fn func(ctx context.Context) error) error
	}
)
