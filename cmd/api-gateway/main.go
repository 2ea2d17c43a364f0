package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gradeflow/gradeflow-api/api/swagger"
	"github.com/gradeflow/gradeflow-api/internal/broker"
	"github.com/gradeflow/gradeflow-api/internal/client"
	"github.com/gradeflow/gradeflow-api/internal/handler"
	"github.com/gradeflow/gradeflow-api/internal/repository"
	"github.com/gradeflow/gradeflow-api/internal/service"
	"github.com/gradeflow/gradeflow-api/pkg/cache"
	"github.com/gradeflow/gradeflow-api/pkg/config"
	"github.com/gradeflow/gradeflow-api/pkg/database"
	"github.com/gradeflow/gradeflow-api/pkg/events"
	"github.com/gradeflow/gradeflow-api/pkg/logger"
	corsmiddleware "github.com/gradeflow/gradeflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gradeflow/gradeflow-api/pkg/middleware/requestid"
)

// @title GradeFlow API
// @version 1.0.0
// @description Grade migration administration: raw score import, late policy scoring, gradebook publication
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// repositories
	taskRepo := repository.NewTaskRepository(db)
	masterRepo := repository.NewMasterMigrationRepository(db)
	migrationRepo := repository.NewMigrationRepository(db)
	logRepo := repository.NewTransactionLogRepository(db)
	rawScoreRepo := repository.NewRawScoreRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lateRequestRepo := repository.NewLateRequestRepository(db)
	userRepo := repository.NewUserRepository(db)

	// infrastructure
	metricsService := service.NewMetricsService()

	bus := events.NewBus(events.BusConfig{BufferSize: cfg.Tasks.EventBufferSize, Logger: logr})
	bus.Subscribe(service.NewTaskEventAuditor(logr))
	bus.Start(ctx)
	defer bus.Stop()

	orchestrator := service.NewTaskOrchestrator(taskRepo, bus, metricsService, logr, service.OrchestratorConfig{
		Workers:            cfg.Tasks.Workers,
		DependencyInterval: cfg.Tasks.DependencyInterval,
		DependencyAttempts: cfg.Tasks.DependencyAttempts,
	})
	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	redisBroker := broker.NewRedisBroker(redisClient, logr)
	channelFactory := service.NewScoreChannelFactory(redisBroker.OpenPublishChannel, redisBroker.OpenReceiveChannel, logr)

	policyServer := client.NewPolicyServerClient(cfg.Scoring.PolicyServerURL, cfg.Scoring.RequestTimeout, logr)
	gradebook := client.NewGradebookClient(cfg.Gradebook.BaseURL, cfg.Gradebook.Token, cfg.Gradebook.RequestTimeout, logr)

	// services
	authService := service.NewAuthService(userRepo, cfg.JWT, logr)
	taskService := service.NewTaskService(taskRepo, logr)

	importLocation, err := time.LoadLocation(cfg.Imports.TimeZone)
	if err != nil {
		logr.Sugar().Warnw("invalid import time zone, falling back to UTC", "time_zone", cfg.Imports.TimeZone)
		importLocation = time.UTC
	}
	rawScoreService := service.NewRawScoreService(migrationRepo, rawScoreRepo, importLocation, logr)

	migrationService := service.NewMigrationService(service.MigrationServiceDeps{
		Masters:      masterRepo,
		Migrations:   migrationRepo,
		Log:          logRepo,
		RawScores:    rawScoreRepo,
		Policies:     policyRepo,
		Courses:      courseRepo,
		LateRequests: lateRequestRepo,
		Tasks:        orchestrator,
		Channels:     channelFactory,
		Engine:       policyServer,
		Gradebook:    gradebook,
		Metrics:      metricsService,
		Logger:       logr,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Tasks:     handler.NewTaskHandler(taskService),
		Migration: handler.NewMigrationHandler(migrationService),
		Imports:   handler.NewImportHandler(rawScoreService),
		Metrics:   handler.NewMetricsHandler(metricsService),
	}, authService, metricsService)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
