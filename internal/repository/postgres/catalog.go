package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pawdesk/scheduling-api/internal/model"
	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
)

// Catalog reads. These tables are owned by settings management; scheduling
// only looks entities up and verifies company scoping.

func (r *catalogRepository) GetLocation(ctx context.Context, companyID, id uuid.UUID) (*model.Location, error) {
	query := `
		SELECT id, company_id, name, timezone, created_at, updated_at, deleted_at
		FROM locations
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
	`
	var location model.Location
	err := sqlx.GetContext(ctx, r.ext(ctx), &location, query, id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("location")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &location, nil
}

func (r *catalogRepository) GetCustomer(ctx context.Context, companyID, id uuid.UUID) (*model.Customer, error) {
	query := `
		SELECT id, company_id, name, created_at, updated_at, deleted_at
		FROM customers
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
	`
	var customer model.Customer
	err := sqlx.GetContext(ctx, r.ext(ctx), &customer, query, id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("customer")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

func (r *catalogRepository) GetPet(ctx context.Context, companyID, id uuid.UUID) (*model.Pet, error) {
	query := `
		SELECT id, company_id, customer_id, name, species, created_at, updated_at, deleted_at
		FROM pets
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
	`
	var pet model.Pet
	err := sqlx.GetContext(ctx, r.ext(ctx), &pet, query, id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("pet")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return &pet, nil
}

func (r *catalogRepository) GetStaff(ctx context.Context, companyID, id uuid.UUID) (*model.Staff, error) {
	query := `
		SELECT id, company_id, location_id, name, role, active, created_at, updated_at, deleted_at
		FROM staff
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
	`
	var staff model.Staff
	err := sqlx.GetContext(ctx, r.ext(ctx), &staff, query, id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("staff")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return &staff, nil
}

func (r *catalogRepository) GetServiceItem(ctx context.Context, companyID, id uuid.UUID) (*model.ServiceItem, error) {
	query := `
		SELECT id, company_id, service_id, name, duration_minutes, requires_staff,
		       created_at, updated_at, deleted_at
		FROM service_items
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
	`
	var item model.ServiceItem
	err := sqlx.GetContext(ctx, r.ext(ctx), &item, query, id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("service item")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service item: %w", err)
	}

	reqQuery := `
		SELECT id, service_item_id, resource_type_id, quantity, duration_minutes,
		       buffer_before_minutes, buffer_after_minutes
		FROM service_item_requirements
		WHERE service_item_id = $1
		ORDER BY duration_minutes DESC
	`
	err = sqlx.SelectContext(ctx, r.ext(ctx), &item.Requirements, reqQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get service item requirements: %w", err)
	}
	return &item, nil
}

func (r *catalogRepository) CountActiveResources(ctx context.Context, companyID, locationID, resourceTypeID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM resources
		WHERE company_id = $1 AND location_id = $2 AND resource_type_id = $3
		AND active = TRUE AND deleted_at IS NULL
	`
	var count int
	err := sqlx.GetContext(ctx, r.ext(ctx), &count, query, companyID, locationID, resourceTypeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

func (r *catalogRepository) ListResources(ctx context.Context, companyID, locationID, resourceTypeID uuid.UUID) ([]*model.Resource, error) {
	query := `
		SELECT id, company_id, location_id, resource_type_id, name, species, active,
		       created_at, updated_at, deleted_at
		FROM resources
		WHERE company_id = $1 AND location_id = $2 AND resource_type_id = $3
		AND active = TRUE AND deleted_at IS NULL
		ORDER BY name ASC
	`
	var resources []*model.Resource
	err := sqlx.SelectContext(ctx, r.ext(ctx), &resources, query, companyID, locationID, resourceTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}
