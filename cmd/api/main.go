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
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-insights-api/api/swagger"
	"github.com/noah-isme/attendance-insights-api/internal/analytics"
	"github.com/noah-isme/attendance-insights-api/internal/assistant"
	"github.com/noah-isme/attendance-insights-api/internal/handler"
	internalmiddleware "github.com/noah-isme/attendance-insights-api/internal/middleware"
	"github.com/noah-isme/attendance-insights-api/internal/repository"
	"github.com/noah-isme/attendance-insights-api/internal/service"
	"github.com/noah-isme/attendance-insights-api/pkg/cache"
	"github.com/noah-isme/attendance-insights-api/pkg/config"
	"github.com/noah-isme/attendance-insights-api/pkg/database"
	"github.com/noah-isme/attendance-insights-api/pkg/jobs"
	"github.com/noah-isme/attendance-insights-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-insights-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-insights-api/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-insights-api/pkg/storage"
)

// @title Attendance Insights API
// @version 1.0.0
// @description Attendance analytics, insights and exports for the university dashboard.
// @BasePath /api/v1
// @schemes http https
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)

	rowFetcher := service.NewRowFetcher(repository.NewAttendanceRepository(db), service.RowFetcherConfig{
		PageSize: cfg.Analytics.PageSize,
		MaxPages: cfg.Analytics.MaxPages,
		Timeout:  cfg.Analytics.FetchTimeout,
	}, metricsSvc, logr)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Rows:     rowFetcher,
		Students: repository.NewStudentRepository(db),
		Cache:    cacheSvc,
		Logger:   logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:          cfg.Analytics.CacheTTL,
			HotspotMinSample:  cfg.Analytics.HotspotMinSample,
			AtRiskDetailLimit: cfg.Analytics.AtRiskDetailLimit,
			Risk: analytics.RiskPolicy{
				RateThreshold:  cfg.Analytics.AtRiskRateThreshold,
				RecentAbsences: cfg.Analytics.AtRiskRecentAbsence,
				Window:         cfg.Analytics.AtRiskWindow,
			},
		},
	})
	filterSvc := service.NewFilterOptionsService(repository.NewFilterOptionRepository(db), cacheSvc, metricsSvc, cfg.Analytics.FilterOptionsTTL, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	bridge := assistant.NewBridge(assistant.Config{
		Endpoint:          cfg.Assistant.Endpoint,
		APIKey:            cfg.Assistant.APIKey,
		Timeout:           cfg.Assistant.Timeout,
		MaxQuestionLength: cfg.Assistant.MaxQuestionLength,
		Logger:            logr,
		Observer:          metricsSvc,
	})

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exportSvc := service.NewExportService(rowFetcher, dashboardSvc, exportStore,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL, MaxRows: cfg.Exports.MaxRows},
		logr)

	exportHandler := handler.NewExportHandler(exportSvc, nil, validate)
	if cfg.Exports.Enabled {
		jobRepo := repository.NewExportJobRepository(db)
		worker := service.NewExportWorker(jobRepo, exportSvc, metricsSvc, logr)
		var jobSvc *service.ExportJobService
		queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
			OnGiveUp: func(ctx context.Context, job jobs.Job, err error) {
				jobSvc.OnGiveUp(ctx, job, err)
			},
		})
		jobSvc = service.NewExportJobService(jobRepo, queue, exportSvc, validate, logr, service.ExportJobServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		queue.Start(ctx)
		defer queue.Stop()
		if n := jobSvc.RecoverPendingJobs(ctx); n > 0 {
			logr.Info("requeued pending export jobs", zap.Int("count", n))
		}
		jobSvc.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(exportSvc, jobSvc, validate)
	}

	checks := map[string]handler.Pinger{"database": db}
	if cacheRepo.Enabled() {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.GET("/system/metrics", metricsHandler.System)
	api.GET("/exports/download/:token", exportHandler.DownloadJob)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, validate)
	dashboard := secured.Group("/dashboard")
	dashboard.GET("/overview", dashboardHandler.Overview)
	dashboard.GET("/kpis", dashboardHandler.KPIs)
	dashboard.GET("/schools", dashboardHandler.Schools)
	dashboard.GET("/programmes", dashboardHandler.Programmes)
	dashboard.GET("/weekly", dashboardHandler.Weekly)
	dashboard.GET("/yearly", dashboardHandler.Yearly)
	dashboard.GET("/delivery-modes", dashboardHandler.DeliveryModes)
	dashboard.GET("/hotspots", dashboardHandler.Hotspots)
	dashboard.GET("/at-risk", dashboardHandler.AtRisk)
	dashboard.GET("/insights", dashboardHandler.Insights)
	dashboard.GET("/count", dashboardHandler.Count)
	dashboard.DELETE("/cache", internalmiddleware.RequireRoles(cfg.JWT.AdminRole), dashboardHandler.InvalidateCache)

	secured.GET("/filters/:dimension", handler.NewFilterHandler(filterSvc).Options)
	secured.POST("/ai/ask", handler.NewAssistantHandler(bridge, logr).Ask)

	secured.GET("/exports/:dataset", exportHandler.Download)
	secured.POST("/exports", exportHandler.CreateJob)
	secured.GET("/exports/jobs/:id", exportHandler.JobStatus)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
}
