package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/repository"
	"github.com/pawdesk/scheduling-api/pkg/logger"
	"github.com/pawdesk/scheduling-api/pkg/messaging"
	"github.com/pawdesk/scheduling-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RetainFor    time.Duration
}

// OutboxProcessor drains the outbox table and publishes domain events to the
// broker. Events are fetched with FOR UPDATE SKIP LOCKED so multiple worker
// replicas can run side by side without double-publishing.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 30 * time.Second
	}
	if config.RetainFor <= 0 {
		config.RetainFor = 24 * time.Hour
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		case <-cleanup.C:
			if err := p.cleanupProcessed(ctx); err != nil {
				p.logger.Error(err, "Failed to clean up processed events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	channel := fmt.Sprintf("company.%s.scheduling", event.CompanyID)
	err := p.broker.Publish(ctx, channel, messaging.Message{
		Type:    event.EventType,
		Payload: event.Payload,
	})
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		return p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil)
	}

	p.metrics.OutboxEventsFailed.Inc()

	// Retries are counted per event. Once the budget is spent the event moves
	// to the dead letter table so a stuck broker cannot wedge the queue.
	if event.RetryCount+1 >= p.config.MaxRetries {
		p.logger.Error(err, "Event exhausted retries, moving to dead letter",
			"event_id", event.ID.String())
		if dlErr := p.repo.MoveToDeadLetter(ctx, event); dlErr != nil {
			return fmt.Errorf("failed to dead-letter event: %w", dlErr)
		}
		return err
	}

	errStr := err.Error()
	retryAt := time.Now().Add(p.config.RetryBackoff * time.Duration(event.RetryCount+1))
	if updateErr := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusFailed, &errStr, &retryAt); updateErr != nil {
		p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
	}
	return err
}

func (p *OutboxProcessor) cleanupProcessed(ctx context.Context) error {
	count, err := p.repo.DeleteProcessedBefore(ctx, time.Now().Add(-p.config.RetainFor))
	if err != nil {
		return err
	}
	if count > 0 {
		p.logger.Info("Cleaned up processed events", "count", count)
	}
	return nil
}
