package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
)

// Service is the availability index: a pure read over active commitments.
// Safe to call repeatedly and concurrently; the write path re-runs it under
// the reservation lock before committing.
type Service struct {
	commitments repository.CommitmentRepository
	catalog     repository.CatalogRepository
	now         func() time.Time
}

func NewService(commitments repository.CommitmentRepository, catalog repository.CatalogRepository) *Service {
	return &Service{
		commitments: commitments,
		catalog:     catalog,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Tests use it to simulate hold expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Check evaluates every requirement against current commitments and reports
// all conflicts, not just the first, so the caller can render one
// consolidated error. exclude removes an appointment's or hold's own claims
// from consideration when it is being moved or converted.
func (s *Service) Check(ctx context.Context, companyID, locationID uuid.UUID, requirements []model.Requirement, exclude model.CommitmentExclusion) (*model.AvailabilityResult, error) {
	if len(requirements) == 0 {
		return &model.AvailabilityResult{Available: true}, nil
	}

	outer := requirements[0].BufferedWindow()
	for _, req := range requirements[1:] {
		w := req.BufferedWindow()
		if w.Start.Before(outer.Start) {
			outer.Start = w.Start
		}
		if w.End.After(outer.End) {
			outer.End = w.End
		}
	}

	commitments, err := s.commitments.ActiveCommitments(ctx, companyID, locationID, outer, s.now(), exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to load commitments: %w", err)
	}

	var conflicts []model.Conflict
	for _, req := range requirements {
		switch {
		case req.StaffID != nil:
			if c := checkStaff(req, commitments); c != nil {
				conflicts = append(conflicts, *c)
			}
		case req.ResourceTypeID != nil:
			c, err := s.checkResourceType(ctx, companyID, locationID, req, commitments)
			if err != nil {
				return nil, err
			}
			if c != nil {
				conflicts = append(conflicts, *c)
			}
		}
	}

	return &model.AvailabilityResult{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

// checkStaff fails if any active commitment for the same staff member
// overlaps the buffered window. Staff are exclusive: one commitment at a time.
func checkStaff(req model.Requirement, commitments []model.Commitment) *model.Conflict {
	window := req.BufferedWindow()
	for _, c := range commitments {
		if c.StaffID == nil || *c.StaffID != *req.StaffID {
			continue
		}
		if window.Overlaps(c.Window()) {
			return &model.Conflict{
				Kind:    model.ConflictKindStaff,
				StaffID: req.StaffID,
				Window:  window,
			}
		}
	}
	return nil
}

// checkResourceType fails when fewer than Quantity instances of the type
// remain unoccupied through the whole buffered window. Peak concurrent
// usage within the window decides: instances are interchangeable, so free
// capacity at any instant is total minus claims covering that instant.
func (s *Service) checkResourceType(ctx context.Context, companyID, locationID uuid.UUID, req model.Requirement, commitments []model.Commitment) (*model.Conflict, error) {
	total, err := s.catalog.CountActiveResources(ctx, companyID, locationID, *req.ResourceTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count resources: %w", err)
	}

	window := req.BufferedWindow()
	var overlapping []model.TimeWindow
	for _, c := range commitments {
		if c.ResourceTypeID == nil || *c.ResourceTypeID != *req.ResourceTypeID {
			continue
		}
		if window.Overlaps(c.Window()) {
			overlapping = append(overlapping, c.Window())
		}
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	used := peakConcurrency(overlapping)
	if total-used < quantity {
		return &model.Conflict{
			Kind:           model.ConflictKindResource,
			ResourceTypeID: req.ResourceTypeID,
			Window:         window,
			Requested:      quantity,
			Available:      total - used,
		}, nil
	}
	return nil, nil
}

// peakConcurrency returns the maximum number of windows covering any single
// instant, via a boundary sweep. End boundaries sort before starts at the
// same instant so touching windows do not stack.
func peakConcurrency(windows []model.TimeWindow) int {
	type boundary struct {
		at    time.Time
		delta int
	}

	boundaries := make([]boundary, 0, len(windows)*2)
	for _, w := range windows {
		boundaries = append(boundaries, boundary{at: w.Start, delta: 1}, boundary{at: w.End, delta: -1})
	}

	sort.Slice(boundaries, func(i, j int) bool {
		if boundaries[i].at.Equal(boundaries[j].at) {
			return boundaries[i].delta < boundaries[j].delta
		}
		return boundaries[i].at.Before(boundaries[j].at)
	})

	peak, current := 0, 0
	for _, b := range boundaries {
		current += b.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}
