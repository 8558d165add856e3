package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/pawdesk/scheduling-api/internal/config"
	"github.com/pawdesk/scheduling-api/internal/repository/postgres"
	availabilityService "github.com/pawdesk/scheduling-api/internal/service/availability"
	holdService "github.com/pawdesk/scheduling-api/internal/service/hold"
	"github.com/pawdesk/scheduling-api/pkg/logger"
	"github.com/pawdesk/scheduling-api/pkg/messaging/redis"
	"github.com/pawdesk/scheduling-api/pkg/metrics"
	"github.com/pawdesk/scheduling-api/pkg/worker"
)

// WorkerConfig tunes the background workers from the environment.
type WorkerConfig struct {
	BatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	PollInterval  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	MaxRetries    int           `envconfig:"OUTBOX_MAX_RETRIES" default:"5"`
	RetryBackoff  time.Duration `envconfig:"OUTBOX_RETRY_BACKOFF" default:"30s"`
	RetainFor     time.Duration `envconfig:"OUTBOX_RETAIN_FOR" default:"24h"`
	SweepInterval time.Duration `envconfig:"HOLD_SWEEP_INTERVAL" default:"1m"`
	HealthPort    string        `envconfig:"HEALTH_PORT" default:"8081"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var workerCfg WorkerConfig
	if err := envconfig.Process("", &workerCfg); err != nil {
		log.Fatal().Err(err).Msg("failed to process worker configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	holdRepo := postgres.NewHoldRepository(db)
	commitmentRepo := postgres.NewCommitmentRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	locker := postgres.NewReservationLocker(db)

	m := metrics.NewMetrics("pawdesk", "scheduling_worker")
	availabilitySvc := availabilityService.NewService(commitmentRepo, catalogRepo)
	holdSvc := holdService.NewService(holdRepo, availabilitySvc, locker, m)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:    workerCfg.BatchSize,
		PollInterval: workerCfg.PollInterval,
		MaxRetries:   workerCfg.MaxRetries,
		RetryBackoff: workerCfg.RetryBackoff,
		RetainFor:    workerCfg.RetainFor,
	}, appLogger, m)

	sweeper := worker.NewHoldSweeper(holdSvc, workerCfg.SweepInterval, appLogger)

	setupHealthCheck(workerCfg.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down workers")
		cancel()
	}()

	go sweeper.Start(ctx)
	processor.Start(ctx)
}

func setupHealthCheck(port string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			appLogger.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
}
