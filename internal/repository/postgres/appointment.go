package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pawdesk/scheduling-api/internal/model"
	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
)

const appointmentColumns = `
	id, company_id, location_id, customer_id, pet_id, service_id, service_item_id,
	staff_id, start_time, end_time, status, notes, scheduled_by, canceled_by,
	status_reason, checked_in_at, started_at, completed_at, canceled_at,
	external_event_id, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, company_id, location_id, customer_id, pet_id, service_id,
			service_item_id, staff_id, start_time, end_time, status, notes,
			scheduled_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		appointment.ID,
		appointment.CompanyID,
		appointment.LocationID,
		appointment.CustomerID,
		appointment.PetID,
		appointment.ServiceID,
		appointment.ServiceItemID,
		appointment.StaffID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notes,
		appointment.ScheduledBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, companyID, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1 AND company_id = $2
	`
	var appointment model.Appointment
	err := sqlx.GetContext(ctx, r.ext(ctx), &appointment, query, id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET start_time = $1, end_time = $2, staff_id = $3, status = $4,
			notes = $5, canceled_by = $6, status_reason = $7,
			checked_in_at = $8, started_at = $9, completed_at = $10,
			canceled_at = $11, updated_at = $12
		WHERE id = $13 AND company_id = $14
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		appointment.StartTime,
		appointment.EndTime,
		appointment.StaffID,
		appointment.Status,
		appointment.Notes,
		appointment.CanceledBy,
		appointment.StatusReason,
		appointment.CheckedInAt,
		appointment.StartedAt,
		appointment.CompletedAt,
		appointment.CanceledAt,
		appointment.UpdatedAt,
		appointment.ID,
		appointment.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment")
	}

	return nil
}

// UpdateStatus writes a status transition with an optimistic guard on the
// previous status. Two racing transitions both pass the state machine check
// against the same snapshot; the guard lets only the first one commit.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, canceled_by = $2, status_reason = $3,
			checked_in_at = $4, started_at = $5, completed_at = $6,
			canceled_at = $7, updated_at = $8
		WHERE id = $9 AND company_id = $10 AND status = $11
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		appointment.Status,
		appointment.CanceledBy,
		appointment.StatusReason,
		appointment.CheckedInAt,
		appointment.StartedAt,
		appointment.CompletedAt,
		appointment.CanceledAt,
		appointment.UpdatedAt,
		appointment.ID,
		appointment.CompanyID,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.InvalidTransition(string(from), string(appointment.Status))
	}
	return nil
}

func (r *appointmentRepository) SetExternalEventID(ctx context.Context, companyID, id uuid.UUID, externalEventID string) error {
	query := `
		UPDATE appointments
		SET external_event_id = $1, updated_at = $2
		WHERE id = $3 AND company_id = $4
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, externalEventID, time.Now(), id, companyID)
	if err != nil {
		return fmt.Errorf("failed to set external event id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment")
	}
	return nil
}

// ReplaceClaims rewrites the capacity claims backing an appointment. Claim
// windows arrive with buffers already applied. Runs inside the caller's
// reservation transaction.
func (r *appointmentRepository) ReplaceClaims(ctx context.Context, appointmentID uuid.UUID, claims []model.ClaimEntry) error {
	ext := r.ext(ctx)

	if _, err := ext.ExecContext(ctx, `DELETE FROM appointment_claims WHERE appointment_id = $1`, appointmentID); err != nil {
		return fmt.Errorf("failed to clear appointment claims: %w", err)
	}

	query := `
		INSERT INTO appointment_claims (
			id, appointment_id, staff_id, resource_type_id, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, claim := range claims {
		id := claim.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := ext.ExecContext(ctx, query,
			id,
			appointmentID,
			claim.StaffID,
			claim.ResourceTypeID,
			claim.StartTime,
			claim.EndTime,
		)
		if err != nil {
			return fmt.Errorf("failed to insert appointment claim: %w", err)
		}
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, companyID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE company_id = $1
	`
	args := []interface{}{companyID}
	argCount := 2

	if filters != nil {
		if filters.LocationID != uuid.Nil {
			query += fmt.Sprintf(" AND location_id = $%d", argCount)
			args = append(args, filters.LocationID)
			argCount++
		}
		if filters.StaffID != uuid.Nil {
			query += fmt.Sprintf(" AND staff_id = $%d", argCount)
			args = append(args, filters.StaffID)
			argCount++
		}
		if filters.CustomerID != uuid.Nil {
			query += fmt.Sprintf(" AND customer_id = $%d", argCount)
			args = append(args, filters.CustomerID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND end_time > $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND start_time < $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
	}

	query += " ORDER BY start_time ASC"

	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, r.ext(ctx), &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
