package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/pawdesk/scheduling-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

type commitmentRepository struct {
	BaseRepository
}

type holdRepository struct {
	BaseRepository
}

type catalogRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

type auditRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewCommitmentRepository(db *sqlx.DB) repository.CommitmentRepository {
	return &commitmentRepository{NewBaseRepository(db)}
}

func NewHoldRepository(db *sqlx.DB) repository.HoldRepository {
	return &holdRepository{NewBaseRepository(db)}
}

func NewCatalogRepository(db *sqlx.DB) repository.CatalogRepository {
	return &catalogRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{NewBaseRepository(db)}
}

// NewReservationLocker exposes the advisory-lock transaction boundary used
// by the scheduling engine.
func NewReservationLocker(db *sqlx.DB) repository.ReservationLocker {
	base := NewBaseRepository(db)
	return &base
}
