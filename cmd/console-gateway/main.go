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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-console/api/swagger"
	"github.com/noah-isme/sma-adp-console/internal/handler"
	"github.com/noah-isme/sma-adp-console/internal/middleware"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/repository"
	"github.com/noah-isme/sma-adp-console/internal/service"
	"github.com/noah-isme/sma-adp-console/pkg/apiclient"
	"github.com/noah-isme/sma-adp-console/pkg/cache"
	"github.com/noah-isme/sma-adp-console/pkg/config"
	"github.com/noah-isme/sma-adp-console/pkg/database"
	"github.com/noah-isme/sma-adp-console/pkg/export"
	"github.com/noah-isme/sma-adp-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-console/pkg/middleware/requestid"
	"github.com/noah-isme/sma-adp-console/pkg/validation"
)

// @title SMA ADP Timetable Console
// @version 1.0.0
// @description Console gateway driving timetable construction against the school backend
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	validator := validation.New()

	client, err := apiclient.New(apiclient.Config{
		BaseURL:  cfg.Backend.BaseURL,
		Timeout:  cfg.Backend.Timeout,
		Observer: metricsSvc.ObserveUpstream,
		Logger:   logr.Named("apiclient"),
	})
	if err != nil {
		logr.Fatal("invalid backend configuration", zap.Error(err))
	}
	timetableRepo := repository.NewTimetableAPIRepository(client)
	referenceRepo := repository.NewReferenceAPIRepository(client)

	checks := map[string]handler.ReadinessCheck{}

	cacheSvc := service.NewCacheService(nil, metricsSvc, cfg.Reference.CacheTTL, logr, false)
	if cfg.Reference.CacheEnabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("reference cache disabled, redis unreachable", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, "console", logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Reference.CacheTTL, logr, true)
			checks["redis"] = cacheRepo.Ping
		}
	}

	auditCfg := service.WorkflowAuditConfig{
		Enabled:    cfg.Audit.Enabled,
		Workers:    cfg.Audit.WorkerConcurrency,
		MaxRetries: cfg.Audit.WorkerRetries,
		RetryDelay: time.Second,
	}
	auditSvc := service.NewWorkflowAuditService(nil, auditCfg, metricsSvc, logr)
	if cfg.Audit.Enabled {
		db, err := openAuditStore(ctx, cfg)
		if err != nil {
			logr.Warn("workflow audit disabled, postgres unavailable", zap.Error(err))
		} else {
			defer db.Close() //nolint:errcheck
			auditSvc = service.NewWorkflowAuditService(repository.NewWorkflowAuditRepository(db), auditCfg, metricsSvc, logr)
			checks["postgres"] = db.PingContext
		}
	}
	auditSvc.Start(context.Background())

	conflictSvc := service.NewTimetableConflictService(timetableRepo, validator, metricsSvc,
		service.ConflictCheckConfig{FailOpen: cfg.Workflow.FailOpenConflictCheck}, logr)
	sessions := service.NewWorkflowSessionService(service.WorkflowDeps{
		Repo:      timetableRepo,
		Checker:   conflictSvc,
		Audit:     auditSvc,
		Validator: validator,
		Metrics:   metricsSvc,
		Logger:    logr,
	}, service.WorkflowSessionConfig{
		TTL:                   cfg.Workflow.SessionTTL,
		DefaultAcademicYearID: cfg.Workflow.ActiveAcademicYearID,
	}, logr)
	go sweepSessions(ctx, sessions, logr)

	referenceSvc := service.NewReferenceDataService(referenceRepo, cacheSvc, cfg.Reference.CacheTTL, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, logr)

	var exportSvc *service.TimetableExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewTimetableExportService(export.NewCSVExporter(), export.NewPDFExporter(export.Landscape), logr)
	}

	workflowHandler := handler.NewTimetableWorkflowHandler(sessions, exportSvc)
	referenceHandler := handler.NewReferenceHandler(referenceSvc)
	historyHandler := handler.NewTimetableHistoryHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metricsSvc, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	api.GET("/metrics/summary", metricsHandler.Summary)

	workflows := api.Group("/timetable/workflows", middleware.EchoWorkflowID())
	workflows.POST("", workflowHandler.Start)
	workflows.GET("/:id", workflowHandler.Get)
	workflows.DELETE("/:id", workflowHandler.Close)
	workflows.PATCH("/:id/configuration", workflowHandler.UpdateConfiguration)
	workflows.POST("/:id/existing", workflowHandler.LoadExisting)
	workflows.POST("/:id/time-slots", workflowHandler.GenerateSlots)
	workflows.GET("/:id/entries/:day/:slot", workflowHandler.OpenEntry)
	workflows.PUT("/:id/entries/:day/:slot", workflowHandler.SubmitEntry)
	workflows.DELETE("/:id/entries/:day/:slot", workflowHandler.DeleteEntry)
	workflows.POST("/:id/validation", workflowHandler.Validate)
	workflows.POST("/:id/draft", workflowHandler.SaveDraft)
	workflows.POST("/:id/final", workflowHandler.SaveFinal)
	workflows.POST("/:id/reset", workflowHandler.Reset)
	workflows.GET("/:id/export", workflowHandler.Export)

	api.GET("/timetable/history", historyHandler.List)

	reference := api.Group("/reference")
	reference.GET("/classes", referenceHandler.Classes)
	reference.GET("/classes/:classId/sections", referenceHandler.Sections)
	reference.GET("/classes/:classId/subjects", referenceHandler.Subjects)
	reference.GET("/teachers", referenceHandler.Teachers)
	reference.DELETE("/cache", referenceHandler.InvalidateCache)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	sessions.CloseAll()
	auditSvc.Stop()
	logr.Info("audit queue drained", zap.Any("stats", auditSvc.Stats()))
}

func openAuditStore(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := repository.NewWorkflowAuditRepository(db).EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	return db, nil
}

func sweepSessions(ctx context.Context, sessions *service.WorkflowSessionService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logr.Debug("expired workflows removed", zap.Int("count", n))
			}
		}
	}
}
