package model

import (
	"github.com/google/uuid"
)

// Service is a bookable service offering (e.g. "Full Groom").
type Service struct {
	Base
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
}

// ServiceItem is a bookable variant of a service with a total duration and
// the staff/resource requirements scheduling must satisfy. Read-only input
// to the scheduling engine.
type ServiceItem struct {
	Base
	CompanyID       uuid.UUID             `db:"company_id" json:"company_id"`
	ServiceID       uuid.UUID             `db:"service_id" json:"service_id"`
	Name            string                `db:"name" json:"name"`
	DurationMinutes int                   `db:"duration_minutes" json:"duration_minutes"`
	RequiresStaff   bool                  `db:"requires_staff" json:"requires_staff"`
	Requirements    []ResourceRequirement `json:"requirements"`
}

// ResourceRequirement declares that a service item needs Quantity resources
// of a type for DurationMinutes from the appointment start. The duration may
// be shorter than the whole visit (a bath step holds the tub only while
// bathing). Buffers extend the window the resource is considered occupied.
type ResourceRequirement struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	ServiceItemID       uuid.UUID `db:"service_item_id" json:"service_item_id"`
	ResourceTypeID      uuid.UUID `db:"resource_type_id" json:"resource_type_id"`
	Quantity            int       `db:"quantity" json:"quantity"`
	DurationMinutes     int       `db:"duration_minutes" json:"duration_minutes"`
	BufferBeforeMinutes int       `db:"buffer_before_minutes" json:"buffer_before_minutes"`
	BufferAfterMinutes  int       `db:"buffer_after_minutes" json:"buffer_after_minutes"`
}
