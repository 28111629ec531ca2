package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/HarshBti1805/Einstein-Academic-Concierge/api/swagger"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/handler"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/middleware"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/repository"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/service"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/cache"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/database"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/jobs"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/logger"
	corsmiddleware "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/middleware/cors"
	reqidmiddleware "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/middleware/requestid"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/storage"
)

// @title Einstein Academic Concierge API
// @version 1.0.0
// @description Course auto-registration, waitlisting and batch allocation engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	var waitlist repository.WaitlistStore
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("redis connection failed", "error", err)
		}
		defer client.Close() //nolint:errcheck
		waitlist = repository.NewRedisWaitlistStore(client)
		logr.Sugar().Infow("waitlist store ready", "backend", "redis")
	} else {
		waitlist = repository.NewMemoryWaitlistStore()
		logr.Sugar().Infow("waitlist store ready", "backend", "memory")
	}

	scorer, err := service.NewScoringService(cfg.Scoring, logr)
	if err != nil {
		logr.Sugar().Fatalw("invalid scoring configuration", "error", err)
	}

	allocator := service.NewAllocationService(waitlist, scorer, cfg.Allocation, cfg.Waitlist.LockTTL, logr)

	validate := validator.New()
	metrics := service.NewMetricsService()

	registrations := service.NewRegistrationService(scorer, allocator, waitlist, cfg.Batch, validate, logr).
		WithMetrics(metrics)

	if cfg.Database.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("database connection failed", "error", err)
		}
		defer db.Close() //nolint:errcheck

		registrations = registrations.WithPersistence(
			repository.NewStudentRepository(db),
			repository.NewCourseRepository(db),
			repository.NewPreferenceRepository(db),
		)
		if err := registrations.Hydrate(context.Background()); err != nil {
			logr.Sugar().Fatalw("hydration failed", "error", err)
		}
		logr.Sugar().Infow("registries hydrated from database")
	}

	exports := service.NewExportService(registrations, logr)

	var exportCleanup *jobs.Periodic
	if cfg.Export.ArchiveEnabled {
		archive, err := storage.NewLocalStorage(cfg.Export.Dir)
		if err != nil {
			logr.Sugar().Fatalw("export archive init failed", "error", err)
		}
		exports = exports.WithArchive(archive)

		exportCleanup = jobs.NewPeriodic("export-cleanup", func(context.Context) error {
			deleted, err := archive.CleanupOlderThan(cfg.Export.Retention)
			if len(deleted) > 0 {
				logr.Sugar().Infow("expired exports removed", "count", len(deleted))
			}
			return err
		}, jobs.PeriodicConfig{Interval: time.Hour, Logger: logr})
	}

	studentHandler := handler.NewStudentHandler(registrations)
	courseHandler := handler.NewCourseHandler(registrations, exports)
	registrationHandler := handler.NewRegistrationHandler(registrations)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		students := api.Group("/students")
		{
			students.POST("", studentHandler.Create)
			students.GET("/:studentId", studentHandler.Get)
			students.GET("/:studentId/status", studentHandler.Status)
			students.PUT("/:studentId/preferences", studentHandler.SetPreferences)
		}

		courses := api.Group("/courses")
		{
			courses.POST("", courseHandler.Create)
			courses.GET("/:courseId", courseHandler.Get)
			courses.GET("/:courseId/status", courseHandler.Status)
			courses.POST("/:courseId/open", courseHandler.OpenBooking)
			courses.POST("/:courseId/close", courseHandler.CloseBooking)
			courses.POST("/:courseId/complete", courseHandler.CompleteCourse)
			courses.GET("/:courseId/roster/export", courseHandler.ExportRoster)
			courses.GET("/:courseId/waitlist/export", courseHandler.ExportWaitlist)
			courses.GET("/:courseId/waitlist/:studentId", registrationHandler.WaitlistStatus)
		}

		regs := api.Group("/registrations")
		{
			regs.POST("/apply", registrationHandler.Apply)
			regs.POST("/apply-all", registrationHandler.ApplyAll)
			regs.POST("/manual", registrationHandler.ManualRegister)
			regs.POST("/dropout", registrationHandler.Dropout)
		}

		allocations := api.Group("/allocations")
		{
			allocations.POST("/run", registrationHandler.RunAllocation)
			allocations.POST("/recompute", registrationHandler.RecomputeScores)
			allocations.POST("/auto-batch/start", registrationHandler.StartAutoBatch)
			allocations.POST("/auto-batch/stop", registrationHandler.StopAutoBatch)
		}

		api.GET("/metrics/summary", metricsHandler.Snapshot)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Batch.EnableAutoBatch {
		registrations.StartAutoBatch(ctx)
	}
	if exportCleanup != nil {
		exportCleanup.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	registrations.StopAutoBatch()
	if exportCleanup != nil {
		exportCleanup.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
