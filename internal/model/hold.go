package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingHold is a time-boxed tentative claim on capacity. Its tentative
// entries occupy staff and resource-type capacity exactly like a confirmed
// appointment until the hold expires, is released, or is converted.
// Expiry is passive: an expired hold is excluded from conflict queries
// immediately and reaped later by the sweeper.
type BookingHold struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	CompanyID  uuid.UUID        `db:"company_id" json:"company_id"`
	LocationID uuid.UUID        `db:"location_id" json:"location_id"`
	CustomerID uuid.UUID        `db:"customer_id" json:"customer_id"`
	Entries    []TentativeEntry `json:"entries"`
	ExpiresAt  time.Time        `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// TentativeEntry claims either a specific staff member or one unit of a
// resource type for a sub-window of the pending appointment.
type TentativeEntry struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	HoldID         uuid.UUID  `db:"hold_id" json:"hold_id"`
	StaffID        *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	ResourceTypeID *uuid.UUID `db:"resource_type_id" json:"resource_type_id,omitempty"`
	StartTime      time.Time  `db:"start_time" json:"start_time"`
	EndTime        time.Time  `db:"end_time" json:"end_time"`
}

// Expired reports whether the hold no longer occupies capacity at now.
func (h *BookingHold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

type CreateHoldRequest struct {
	LocationID string             `json:"location_id" validate:"required,uuid"`
	CustomerID string             `json:"customer_id" validate:"required,uuid"`
	Entries    []HoldEntryRequest `json:"entries" validate:"required,min=1,dive"`
	TTLSeconds int                `json:"ttl_seconds" validate:"omitempty,min=30,max=3600"`
}

type HoldEntryRequest struct {
	StaffID        string    `json:"staff_id" validate:"omitempty,uuid"`
	ResourceTypeID string    `json:"resource_type_id" validate:"omitempty,uuid"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}
