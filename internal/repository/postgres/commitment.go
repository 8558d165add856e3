package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pawdesk/scheduling-api/internal/model"
)

// ActiveCommitments returns every live capacity claim at the location that
// overlaps the given window: claims backing appointments in non-terminal
// statuses, plus entries of holds that have not expired at now. Terminal
// appointments and expired holds drop out of the query even before any
// physical cleanup. Overlap is half-open, so touching windows do not match.
func (r *commitmentRepository) ActiveCommitments(ctx context.Context, companyID, locationID uuid.UUID, window model.TimeWindow, now time.Time, exclude model.CommitmentExclusion) ([]model.Commitment, error) {
	query := `
		SELECT c.appointment_id, NULL::uuid AS hold_id, c.staff_id, c.resource_type_id,
		       c.start_time, c.end_time
		FROM appointment_claims c
		JOIN appointments a ON a.id = c.appointment_id
		WHERE a.company_id = $1
		AND a.location_id = $2
		AND a.status NOT IN ('completed', 'canceled', 'no_show')
		AND c.start_time < $4
		AND c.end_time > $3
		AND ($5::uuid IS NULL OR c.appointment_id != $5)
		UNION ALL
		SELECT NULL::uuid AS appointment_id, e.hold_id, e.staff_id, e.resource_type_id,
		       e.start_time, e.end_time
		FROM hold_entries e
		JOIN booking_holds h ON h.id = e.hold_id
		WHERE h.company_id = $1
		AND h.location_id = $2
		AND h.expires_at > $6
		AND e.start_time < $4
		AND e.end_time > $3
		AND ($7::uuid IS NULL OR e.hold_id != $7)
	`

	var commitments []model.Commitment
	err := sqlx.SelectContext(ctx, r.ext(ctx), &commitments, query,
		companyID,
		locationID,
		window.Start,
		window.End,
		exclude.AppointmentID,
		now,
		exclude.HoldID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load active commitments: %w", err)
	}
	return commitments, nil
}
