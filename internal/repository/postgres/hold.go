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

func (r *holdRepository) Create(ctx context.Context, hold *model.BookingHold) error {
	ext := r.ext(ctx)

	if hold.ID == uuid.Nil {
		hold.ID = uuid.New()
	}
	hold.CreatedAt = time.Now()

	query := `
		INSERT INTO booking_holds (
			id, company_id, location_id, customer_id, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := ext.ExecContext(ctx, query,
		hold.ID,
		hold.CompanyID,
		hold.LocationID,
		hold.CustomerID,
		hold.ExpiresAt,
		hold.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}

	entryQuery := `
		INSERT INTO hold_entries (
			id, hold_id, staff_id, resource_type_id, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range hold.Entries {
		entry := &hold.Entries[i]
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.HoldID = hold.ID
		_, err := ext.ExecContext(ctx, entryQuery,
			entry.ID,
			entry.HoldID,
			entry.StaffID,
			entry.ResourceTypeID,
			entry.StartTime,
			entry.EndTime,
		)
		if err != nil {
			return fmt.Errorf("failed to create hold entry: %w", err)
		}
	}
	return nil
}

func (r *holdRepository) Get(ctx context.Context, companyID, id uuid.UUID) (*model.BookingHold, error) {
	query := `
		SELECT id, company_id, location_id, customer_id, expires_at, created_at
		FROM booking_holds
		WHERE id = $1 AND company_id = $2
	`
	var hold model.BookingHold
	err := sqlx.GetContext(ctx, r.ext(ctx), &hold, query, id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("hold")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	entryQuery := `
		SELECT id, hold_id, staff_id, resource_type_id, start_time, end_time
		FROM hold_entries
		WHERE hold_id = $1
		ORDER BY start_time ASC
	`
	err = sqlx.SelectContext(ctx, r.ext(ctx), &hold.Entries, entryQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get hold entries: %w", err)
	}
	return &hold, nil
}

// Delete removes a hold and its entries. Returns false when nothing was
// deleted, so release stays idempotent.
func (r *holdRepository) Delete(ctx context.Context, companyID, id uuid.UUID) (bool, error) {
	result, err := r.ext(ctx).ExecContext(ctx,
		`DELETE FROM booking_holds WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return false, fmt.Errorf("failed to delete hold: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *holdRepository) ListActive(ctx context.Context, companyID, locationID uuid.UUID, now time.Time) ([]*model.BookingHold, error) {
	query := `
		SELECT id, company_id, location_id, customer_id, expires_at, created_at
		FROM booking_holds
		WHERE company_id = $1 AND location_id = $2 AND expires_at > $3
		ORDER BY created_at ASC
	`
	var holds []*model.BookingHold
	err := sqlx.SelectContext(ctx, r.ext(ctx), &holds, query, companyID, locationID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active holds: %w", err)
	}
	return holds, nil
}

// DeleteExpired reaps holds whose expiry has passed. Safe to run
// concurrently with reservations: expired holds are already invisible to
// conflict queries.
func (r *holdRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.ext(ctx).ExecContext(ctx,
		`DELETE FROM booking_holds WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired holds: %w", err)
	}
	return result.RowsAffected()
}
