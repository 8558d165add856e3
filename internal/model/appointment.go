package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusCheckedIn  AppointmentStatus = "checked_in"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCanceled   AppointmentStatus = "canceled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// statusTransitions is the single source of truth for the appointment
// state machine. Terminal statuses have no entry.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled:  {AppointmentStatusCheckedIn, AppointmentStatusCanceled, AppointmentStatusNoShow},
	AppointmentStatusCheckedIn:  {AppointmentStatusInProgress, AppointmentStatusCanceled, AppointmentStatusNoShow},
	AppointmentStatusInProgress: {AppointmentStatusCompleted, AppointmentStatusCanceled, AppointmentStatusNoShow},
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to AppointmentStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (s AppointmentStatus) IsTerminal() bool {
	_, ok := statusTransitions[s]
	return !ok
}

type StatusReason string

const (
	ReasonCustomerRequest  StatusReason = "customer_request"
	ReasonStaffUnavailable StatusReason = "staff_unavailable"
	ReasonWeather          StatusReason = "weather"
	ReasonPetHealth        StatusReason = "pet_health"
	ReasonRescheduled      StatusReason = "rescheduled"
	ReasonNoShow           StatusReason = "no_show"
	ReasonOther            StatusReason = "other"
)

var validReasons = map[StatusReason]bool{
	ReasonCustomerRequest:  true,
	ReasonStaffUnavailable: true,
	ReasonWeather:          true,
	ReasonPetHealth:        true,
	ReasonRescheduled:      true,
	ReasonNoShow:           true,
	ReasonOther:            true,
}

func (r StatusReason) Valid() bool { return validReasons[r] }

type Appointment struct {
	Base
	CompanyID       uuid.UUID         `db:"company_id" json:"company_id"`
	LocationID      uuid.UUID         `db:"location_id" json:"location_id"`
	CustomerID      uuid.UUID         `db:"customer_id" json:"customer_id"`
	PetID           uuid.UUID         `db:"pet_id" json:"pet_id"`
	ServiceID       uuid.UUID         `db:"service_id" json:"service_id"`
	ServiceItemID   uuid.UUID         `db:"service_item_id" json:"service_item_id"`
	StaffID         *uuid.UUID        `db:"staff_id" json:"staff_id,omitempty"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	EndTime         time.Time         `db:"end_time" json:"end_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	ScheduledBy     uuid.UUID         `db:"scheduled_by" json:"scheduled_by"`
	CanceledBy      *uuid.UUID        `db:"canceled_by" json:"canceled_by,omitempty"`
	StatusReason    *StatusReason     `db:"status_reason" json:"status_reason,omitempty"`
	CheckedInAt     *time.Time        `db:"checked_in_at" json:"checked_in_at,omitempty"`
	StartedAt       *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CanceledAt      *time.Time        `db:"canceled_at" json:"canceled_at,omitempty"`
	ExternalEventID *string           `db:"external_event_id" json:"external_event_id,omitempty"`
}

// Window returns the appointment's [start, end) interval.
func (a *Appointment) Window() TimeWindow {
	return TimeWindow{Start: a.StartTime, End: a.EndTime}
}

type CreateAppointmentRequest struct {
	LocationID    string    `json:"location_id" validate:"required,uuid"`
	CustomerID    string    `json:"customer_id" validate:"required,uuid"`
	PetID         string    `json:"pet_id" validate:"required,uuid"`
	ServiceItemID string    `json:"service_item_id" validate:"required,uuid"`
	StaffID       string    `json:"staff_id" validate:"omitempty,uuid"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	Notes         string    `json:"notes" validate:"max=1000"`
	HoldID        string    `json:"hold_id" validate:"omitempty,uuid"`
}

type UpdateAppointmentRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	StaffID   *uuid.UUID `json:"staff_id"`
	Notes     *string    `json:"notes"`
}

type TransitionRequest struct {
	Status AppointmentStatus `json:"status" validate:"required"`
	Reason StatusReason      `json:"reason"`
}

type AppointmentFilters struct {
	LocationID uuid.UUID
	StaffID    uuid.UUID
	CustomerID uuid.UUID
	Status     AppointmentStatus
	StartDate  time.Time
	EndDate    time.Time
}
