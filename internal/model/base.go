package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Actor identifies the authenticated caller for audit purposes.
// The core never authenticates requests itself; the identity arrives
// from the gateway as verified JWT claims.
type Actor struct {
	CompanyID uuid.UUID `json:"company_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
}

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start" db:"start_time"`
	End   time.Time `json:"end" db:"end_time"`
}

// Overlaps reports whether two half-open windows intersect.
// Touching windows (w.End == other.Start) do not conflict.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Expand widens the window by the given buffers.
func (w TimeWindow) Expand(before, after time.Duration) TimeWindow {
	return TimeWindow{Start: w.Start.Add(-before), End: w.End.Add(after)}
}

// Valid reports whether Start < End.
func (w TimeWindow) Valid() bool {
	return w.Start.Before(w.End)
}
