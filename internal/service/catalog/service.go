package catalog

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/google/uuid"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
)

const (
	cacheTTL     = 30 * time.Second
	cacheCleanup = 5 * time.Minute
)

// Service fronts the settings-owned catalogs with a short TTL cache. The
// catalogs are read-mostly; a 30s staleness window is acceptable because
// the availability re-check under the reservation lock reads commitments,
// not catalog entities.
type Service struct {
	repo  repository.CatalogRepository
	cache *gocache.Cache
}

func NewService(repo repository.CatalogRepository) *Service {
	return &Service{
		repo:  repo,
		cache: gocache.New(cacheTTL, cacheCleanup),
	}
}

func (s *Service) GetLocation(ctx context.Context, companyID, id uuid.UUID) (*model.Location, error) {
	key := fmt.Sprintf("location:%s:%s", companyID, id)
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Location), nil
	}
	location, err := s.repo.GetLocation(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, location)
	return location, nil
}

func (s *Service) GetCustomer(ctx context.Context, companyID, id uuid.UUID) (*model.Customer, error) {
	return s.repo.GetCustomer(ctx, companyID, id)
}

func (s *Service) GetPet(ctx context.Context, companyID, id uuid.UUID) (*model.Pet, error) {
	return s.repo.GetPet(ctx, companyID, id)
}

func (s *Service) GetStaff(ctx context.Context, companyID, id uuid.UUID) (*model.Staff, error) {
	key := fmt.Sprintf("staff:%s:%s", companyID, id)
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Staff), nil
	}
	staff, err := s.repo.GetStaff(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, staff)
	return staff, nil
}

func (s *Service) GetServiceItem(ctx context.Context, companyID, id uuid.UUID) (*model.ServiceItem, error) {
	key := fmt.Sprintf("service_item:%s:%s", companyID, id)
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.ServiceItem), nil
	}
	item, err := s.repo.GetServiceItem(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, item)
	return item, nil
}

func (s *Service) ListResources(ctx context.Context, companyID, locationID, resourceTypeID uuid.UUID) ([]*model.Resource, error) {
	return s.repo.ListResources(ctx, companyID, locationID, resourceTypeID)
}
