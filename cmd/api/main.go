package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/pawdesk/scheduling-api/internal/config"
	"github.com/pawdesk/scheduling-api/internal/handler"
	appointmentHandler "github.com/pawdesk/scheduling-api/internal/handler/appointment"
	availabilityHandler "github.com/pawdesk/scheduling-api/internal/handler/availability"
	holdHandler "github.com/pawdesk/scheduling-api/internal/handler/hold"
	"github.com/pawdesk/scheduling-api/internal/middleware"
	"github.com/pawdesk/scheduling-api/internal/repository/postgres"
	"github.com/pawdesk/scheduling-api/internal/router"
	appointmentService "github.com/pawdesk/scheduling-api/internal/service/appointment"
	auditService "github.com/pawdesk/scheduling-api/internal/service/audit"
	availabilityService "github.com/pawdesk/scheduling-api/internal/service/availability"
	catalogService "github.com/pawdesk/scheduling-api/internal/service/catalog"
	eventService "github.com/pawdesk/scheduling-api/internal/service/event"
	holdService "github.com/pawdesk/scheduling-api/internal/service/hold"
	schedulerService "github.com/pawdesk/scheduling-api/internal/service/scheduler"
	"github.com/pawdesk/scheduling-api/pkg/logger"
	"github.com/pawdesk/scheduling-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	commitmentRepo := postgres.NewCommitmentRepository(db)
	holdRepo := postgres.NewHoldRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	locker := postgres.NewReservationLocker(db)

	// Services
	m := metrics.NewMetrics("pawdesk", "scheduling")
	availabilitySvc := availabilityService.NewService(commitmentRepo, catalogRepo)
	catalogSvc := catalogService.NewService(catalogRepo)
	auditSvc := auditService.NewService(auditRepo, appLogger.Zerolog())
	eventSvc := eventService.NewService(outboxRepo, appLogger.Zerolog())
	holdSvc := holdService.NewService(holdRepo, availabilitySvc, locker, m)
	lifecycleSvc := appointmentService.NewService(appointmentRepo, auditSvc, eventSvc)
	schedulerSvc := schedulerService.NewService(
		appointmentRepo,
		availabilitySvc,
		holdSvc,
		catalogSvc,
		locker,
		auditSvc,
		eventSvc,
		m,
	)

	// Handlers
	apptH := appointmentHandler.NewHandler(schedulerSvc, lifecycleSvc)
	holdH := holdHandler.NewHandler(holdSvc)
	availH := availabilityHandler.NewHandler(schedulerSvc)
	healthH := handler.NewHealthHandler(db)

	r := router.NewRouter(apptH, holdH, availH, healthH, router.Config{
		RateLimit:     rate.Limit(cfg.Scheduler.RateLimitRPS),
		RateBurst:     cfg.Scheduler.RateLimitBurst,
		CORSConfig:    middleware.DefaultCORSConfig(),
		MetricsPrefix: "scheduling_api",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
