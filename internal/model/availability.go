package model

import (
	"time"

	"github.com/google/uuid"
)

// Requirement is one normalized capacity need checked by the availability
// index: either a specific staff member or Quantity units of a resource
// type, over a sub-window of the appointment. Buffers widen the window the
// capacity is considered occupied.
type Requirement struct {
	StaffID        *uuid.UUID    `json:"staff_id,omitempty"`
	ResourceTypeID *uuid.UUID    `json:"resource_type_id,omitempty"`
	Quantity       int           `json:"quantity,omitempty"`
	Window         TimeWindow    `json:"window"`
	BufferBefore   time.Duration `json:"buffer_before,omitempty"`
	BufferAfter    time.Duration `json:"buffer_after,omitempty"`
}

// BufferedWindow returns the window widened by the requirement's buffers.
func (r Requirement) BufferedWindow() TimeWindow {
	return r.Window.Expand(r.BufferBefore, r.BufferAfter)
}

type ConflictKind string

const (
	ConflictKindStaff    ConflictKind = "staff"
	ConflictKindResource ConflictKind = "resource"
)

// Conflict describes why one requirement could not be satisfied.
type Conflict struct {
	Kind           ConflictKind `json:"kind"`
	StaffID        *uuid.UUID   `json:"staff_id,omitempty"`
	ResourceTypeID *uuid.UUID   `json:"resource_type_id,omitempty"`
	Window         TimeWindow   `json:"window"`
	Requested      int          `json:"requested,omitempty"`
	Available      int          `json:"available,omitempty"`
}

// AvailabilityResult reports every failing requirement, not just the first,
// so the caller can render one consolidated error.
type AvailabilityResult struct {
	Available bool       `json:"available"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Commitment is an active claim on capacity: a confirmed appointment in a
// non-terminal status, or an unexpired hold entry. The availability index
// treats both identically.
type Commitment struct {
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	HoldID         *uuid.UUID `db:"hold_id" json:"hold_id,omitempty"`
	StaffID        *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	ResourceTypeID *uuid.UUID `db:"resource_type_id" json:"resource_type_id,omitempty"`
	StartTime      time.Time  `db:"start_time" json:"start_time"`
	EndTime        time.Time  `db:"end_time" json:"end_time"`
}

// Window returns the commitment's occupied interval.
func (c Commitment) Window() TimeWindow {
	return TimeWindow{Start: c.StartTime, End: c.EndTime}
}

// ClaimEntry is one persisted capacity claim backing an appointment: the
// staff member for the whole visit, or one unit of a resource type for a
// buffered sub-window. Claims are written with buffers already applied.
type ClaimEntry struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AppointmentID  uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	StaffID        *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	ResourceTypeID *uuid.UUID `db:"resource_type_id" json:"resource_type_id,omitempty"`
	StartTime      time.Time  `db:"start_time" json:"start_time"`
	EndTime        time.Time  `db:"end_time" json:"end_time"`
}

// CommitmentExclusion removes one appointment's or hold's own claims from a
// conflict query, so a move or a hold conversion does not collide with itself.
type CommitmentExclusion struct {
	AppointmentID *uuid.UUID
	HoldID        *uuid.UUID
}

type CheckAvailabilityRequest struct {
	LocationID    string    `json:"location_id" validate:"required,uuid"`
	ServiceItemID string    `json:"service_item_id" validate:"required,uuid"`
	StaffID       string    `json:"staff_id" validate:"omitempty,uuid"`
	StartTime     time.Time `json:"start_time" validate:"required"`
}
