package worker

import (
	"context"
	"time"

	"github.com/pawdesk/scheduling-api/internal/service/hold"
	"github.com/pawdesk/scheduling-api/pkg/logger"
)

// HoldSweeper periodically reaps expired booking holds. The sweep is purely
// hygienic: expired holds are already invisible to availability queries.
type HoldSweeper struct {
	holds    *hold.Service
	interval time.Duration
	logger   *logger.Logger
}

func NewHoldSweeper(holds *hold.Service, interval time.Duration, logger *logger.Logger) *HoldSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HoldSweeper{
		holds:    holds,
		interval: interval,
		logger:   logger,
	}
}

func (s *HoldSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting hold sweeper")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down hold sweeper")
			return
		case <-ticker.C:
			count, err := s.holds.SweepExpired(ctx)
			if err != nil {
				s.logger.Error(err, "Failed to sweep expired holds")
				continue
			}
			if count > 0 {
				s.logger.Info("Swept expired holds", "count", count)
			}
		}
	}
}
