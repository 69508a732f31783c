package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/learning-center-api/api/swagger"
	"github.com/noah-isme/learning-center-api/internal/handler"
	"github.com/noah-isme/learning-center-api/internal/repository"
	"github.com/noah-isme/learning-center-api/internal/router"
	"github.com/noah-isme/learning-center-api/internal/service"
	"github.com/noah-isme/learning-center-api/pkg/cache"
	"github.com/noah-isme/learning-center-api/pkg/config"
	"github.com/noah-isme/learning-center-api/pkg/database"
	"github.com/noah-isme/learning-center-api/pkg/logger"
)

// @title Learning Center API
// @version 1.0.0
// @description Course capacity, enrollment and waiting-list engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.HealthCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	if cfg.QueueViews.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, queue cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			redisRepo := repository.NewCacheRepository(client)
			cacheRepo = redisRepo
			checks["redis"] = redisRepo.Ping
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.QueueViews.CacheTTL, logr, cfg.QueueViews.CacheEnabled)

	validate := validator.New()
	store := repository.NewStore(db)
	audits := repository.NewAuditRepository(db)
	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	students := repository.NewStudentRepository(db)
	ledger := service.NewWaitlistLedger()

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), cfg.Notifications, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	authSvc := service.NewAuthService(users, audits, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(users, audits, validate, logr)
	engine := service.NewEnrollmentService(store, ledger, audits, cacheSvc, metrics, notifications, cfg.Enrollment, validate, logr)
	courseSvc := service.NewCourseService(courses, store, engine, audits, cacheSvc, validate, logr)
	queueSvc := service.NewQueueService(store, courses, ledger, cacheSvc, cfg.QueueViews.CacheTTL, logr)
	exportSvc := service.NewExportService(queueSvc, logr)

	engineRouter := router.Setup(router.Options{
		Config:   cfg,
		Logger:   logr,
		Tokens:   authSvc,
		Observer: metrics,
	}, router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Enrollments:   handler.NewEnrollmentHandler(engine),
		Queues:        handler.NewQueueHandler(queueSvc, exportSvc, students),
		Notifications: handler.NewNotificationHandler(notifications),
		Metrics:       handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engineRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
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
