package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/Flexitaim/api-flexitaim/api/swagger"
	"github.com/Flexitaim/api-flexitaim/internal/handler"
	"github.com/Flexitaim/api-flexitaim/internal/repository"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	"github.com/Flexitaim/api-flexitaim/internal/service"
	"github.com/Flexitaim/api-flexitaim/pkg/cache"
	"github.com/Flexitaim/api-flexitaim/pkg/config"
	"github.com/Flexitaim/api-flexitaim/pkg/database"
	"github.com/Flexitaim/api-flexitaim/pkg/export"
	"github.com/Flexitaim/api-flexitaim/pkg/logger"
	"github.com/Flexitaim/api-flexitaim/pkg/notify"
	"github.com/Flexitaim/api-flexitaim/pkg/tickets"
)

// @title Flexitaim API
// @version 1.0.0
// @description Scheduling API for resources, weekly availability windows and bookings.
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

	loc, err := scheduling.LoadZone(cfg.Scheduling.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid scheduling timezone", "timezone", cfg.Scheduling.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	var metricsSvc *service.MetricsService
	if cfg.MetricsEnabled {
		metricsSvc = service.NewMetricsService()
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, availability cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.WindowsTTL, logr, true)
	}

	sender, err := notify.New(cfg.Notify, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init notification sender", "driver", cfg.Notify.Driver, "error", err)
	}
	if closer, ok := sender.(io.Closer); ok {
		defer closer.Close() //nolint:errcheck
	}

	windowRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	userRepo := repository.NewUserRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	cancellationRepo := repository.NewCancellationRepository(db)

	schedCfg := service.SchedulingConfig{
		Location:      loc,
		Clock:         scheduling.SystemClock{},
		Tx:            service.TxConfig{Isolation: cfg.Database.TxIsolation, MaxRetries: cfg.Database.TxMaxRetries},
		CacheTTL:      cfg.Cache.WindowsTTL,
		BatchMaxItems: cfg.Scheduling.BatchMaxItems,
		Metrics:       metricsSvc,
	}
	validate := validator.New()

	notifications := service.NewNotificationService(sender, resourceRepo, userRepo, metricsSvc, logr, service.NotificationConfig{
		AppName:  cfg.Notify.AppName,
		Timeout:  cfg.Notify.Timeout,
		Workers:  cfg.Notify.Workers,
		Retries:  cfg.Notify.Retries,
	})
	rootCtx, stopWorkers := context.WithCancel(context.Background())
	notifications.Start(rootCtx)

	availabilitySvc := service.NewAvailabilityService(windowRepo, resourceRepo, db, cacheSvc, validate, logr, schedCfg)
	batchSvc := service.NewAvailabilityBatchService(windowRepo, resourceRepo, db, cacheSvc, validate, logr, schedCfg)
	bookingSvc := service.NewBookingService(bookingRepo, resourceRepo, db, notifications, cancellationRepo, validate, logr, schedCfg)
	resourceSvc := service.NewResourceService(resourceRepo, bookingRepo, windowRepo, userRepo, db, cacheSvc, validate, logr, schedCfg)
	favoriteSvc := service.NewFavoriteService(favoriteRepo, userRepo, resourceRepo, db, validate, logr, schedCfg)
	ticketSvc := service.NewTicketService(bookingRepo, tickets.NewSigner(cfg.Tickets.SigningSecret, cfg.Tickets.TTL), cfg.Tickets.QRBaseURL, loc, logr)
	exportSvc := service.NewExportService(resourceRepo, bookingRepo, userRepo, logr, export.NewCSVExporter(export.WithBOM()), export.NewPDFExporter())
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = cache.Health{Client: redisClient}
	}

	router := newRouter(cfg, logr, routerDeps{
		auth:         authSvc,
		metrics:      metricsSvc,
		availability: handler.NewAvailabilityHandler(availabilitySvc, batchSvc),
		bookings:     handler.NewBookingHandler(bookingSvc, ticketSvc),
		resources:    handler.NewResourceHandler(resourceSvc, exportSvc),
		favorites:    handler.NewFavoriteHandler(favoriteSvc),
		health:       handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	notifications.Stop()
	stopWorkers()
}
