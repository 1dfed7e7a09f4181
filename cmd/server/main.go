package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compliance_flow_app_go/config"
	"compliance_flow_app_go/db"
	"compliance_flow_app_go/handlers"
	"compliance_flow_app_go/logger"
	"compliance_flow_app_go/middleware"
	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"
	"compliance_flow_app_go/services/jobs"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.Environment, cfg.LogLevel)

	// Initialize database
	err := db.Initialize(db.Options{
		DBPath:      cfg.DBPath,
		Environment: cfg.Environment,
		TursoURL:    cfg.TursoDatabaseURL,
		TursoToken:  cfg.TursoAuthToken,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	migrate := []interface{}{
		&models.User{}, &models.Role{}, &models.Case{},
		&models.AuditEntry{}, &models.ExpiryRecord{}, &models.RenewalConfig{},
	}
	migrate = append(migrate, services.StageModels()...)
	if err := db.AutoMigrate(migrate...); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if err := services.SeedRoles(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed roles")
	}
	if err := services.SeedRenewalConfigs(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed renewal configs")
	}

	policy, err := services.LoadRolePolicy(cfg.CapabilityPolicyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CapabilityPolicyPath).Msg("Failed to load capability policy")
	}
	services.SetRolePolicy(policy)

	// Engines
	authorizer := services.NewRoleAuthorizer()
	audit := services.NewAuditLogger(db.DB)
	workflow := services.NewWorkflowEngine(db.DB, authorizer, audit, services.NewStorageFromConfig(cfg))
	expiry, err := services.NewExpiryEngine(db.DB, authorizer, audit, services.NewResendNotifier(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create expiry engine")
	}
	handlers.Init(workflow, expiry)
	monitor := services.InitSecurityMonitor()
	defer monitor.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	// Middleware
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Metrics())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiLimiter := middleware.NewAPIRateLimiter()
	defer apiLimiter.Stop()
	importLimiter := middleware.NewImportRateLimiter()
	defer importLimiter.Stop()

	api := e.Group("/api")
	api.Use(middleware.AuditContext())
	api.Use(middleware.RequireCaller(db.DB, cfg.SessionSecret))
	api.Use(apiLimiter.Middleware())
	handlers.RegisterAPIRoutes(api, importLimiter.Middleware())

	// Reminder sweep
	scheduler, err := jobs.StartScheduler(db.DB, expiry, cfg.ReminderSweepSchedule, cfg.SchedulerTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	if cfg.ReminderSweepOnStart {
		go func() {
			if _, err := jobs.SweepExpiryReminders(context.Background(), db.DB, expiry); err != nil {
				log.Error().Err(err).Msg("Startup reminder sweep aborted")
			}
		}()
	}

	// Start server
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server starting")
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
