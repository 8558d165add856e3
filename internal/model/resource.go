package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ResourceType is a category of interchangeable bookable resources,
// e.g. "Grooming Table". Scheduling reserves against the type; a concrete
// instance is only implied by remaining capacity.
type ResourceType struct {
	Base
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
}

// Resource is one bookable physical unit of a resource type, scoped to a
// company and location. Owned by settings management; scheduling only reads it.
type Resource struct {
	Base
	CompanyID      uuid.UUID      `db:"company_id" json:"company_id"`
	LocationID     uuid.UUID      `db:"location_id" json:"location_id"`
	ResourceTypeID uuid.UUID      `db:"resource_type_id" json:"resource_type_id"`
	Name           string         `db:"name" json:"name"`
	Species        pq.StringArray `db:"species" json:"species"`
	Active         bool           `db:"active" json:"active"`
}

// ServesSpecies reports whether the resource can serve the given species.
// An empty tag list means the resource is species-agnostic.
func (r *Resource) ServesSpecies(species string) bool {
	if len(r.Species) == 0 {
		return true
	}
	for _, s := range r.Species {
		if s == species {
			return true
		}
	}
	return false
}

// Staff is a schedulable team member at a location.
type Staff struct {
	Base
	CompanyID  uuid.UUID `db:"company_id" json:"company_id"`
	LocationID uuid.UUID `db:"location_id" json:"location_id"`
	Name       string    `db:"name" json:"name"`
	Role       string    `db:"role" json:"role"`
	Active     bool      `db:"active" json:"active"`
}

// Location is a company site appointments are scheduled at.
type Location struct {
	Base
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
	Timezone  string    `db:"timezone" json:"timezone"`
}

// Customer and Pet are read-only references owned by the CRM side.
type Customer struct {
	Base
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
}

type Pet struct {
	Base
	CompanyID  uuid.UUID `db:"company_id" json:"company_id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
	Name       string    `db:"name" json:"name"`
	Species    string    `db:"species" json:"species"`
}
