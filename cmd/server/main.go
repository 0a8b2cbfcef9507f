package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rigshare/service-booking/internal/application"
	"github.com/rigshare/service-booking/internal/config"
	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	bookingEvents "github.com/rigshare/service-booking/internal/events"
	"github.com/rigshare/service-booking/internal/handler"
	"github.com/rigshare/service-booking/internal/jobs"
	"github.com/rigshare/service-booking/internal/policycache"
	"github.com/rigshare/service-booking/internal/repository"
	"github.com/rigshare/service-booking/pkg/auth"
	"github.com/rigshare/service-booking/pkg/database"
	"github.com/rigshare/service-booking/pkg/health"
	"github.com/rigshare/service-booking/pkg/kafka"
	"github.com/rigshare/service-booking/pkg/logger"
	"github.com/rigshare/service-booking/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("platform_fee_rate", cfg.FeeConfig.PlatformFeeRate.String()),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessExpiry,
		cfg.JWTConfig.RefreshExpiry,
	)

	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	auditRepo := repository.NewGormAuditEventRepository(db)
	listingRepo := repository.NewGormListingRepository(db)
	policyRepo := repository.NewGormPolicyRepository(db)
	reportRepo := repository.NewGormDamageReportRepository(db)

	feeCalculator, err := bookingDomain.NewFeeCalculator(cfg.FeeConfig.PlatformFeeRate)
	if err != nil {
		log.Fatal("invalid fee configuration", zap.Error(err))
	}

	auditPublisher := bookingEvents.NewAuditPublisher(auditRepo, kafkaProducer, log)
	notifier := bookingEvents.NewNotificationPublisher(kafkaProducer)
	policies := policycache.New(policyRepo, cfg.PolicyConfig.CacheTTL)

	// Application services
	insuranceService := application.NewInsuranceService(policyRepo, policies, cfg.PolicyConfig.Slug, log)
	listingService := application.NewListingService(listingRepo, log)
	bookingService := application.NewBookingService(
		bookingRepo,
		auditRepo,
		listingRepo,
		insuranceService,
		feeCalculator,
		auditPublisher,
		notifier,
		log,
	)
	lifecycleService := application.NewLifecycleService(bookingRepo, auditPublisher, notifier, log)
	damageService := application.NewDamageService(reportRepo, bookingRepo, notifier, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		lifecycleService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Republishes audit events whose first publish failed.
	auditRelay, err := jobs.NewAuditRelay(cfg.AuditRelaySchedule, auditRepo, auditPublisher, log)
	if err != nil {
		log.Fatal("failed to schedule audit relay", zap.Error(err))
	}
	auditRelay.Start()

	bookingHandler := handler.NewBookingHandler(bookingService, lifecycleService)
	damageHandler := handler.NewDamageHandler(damageService, lifecycleService)
	listingHandler := handler.NewListingHandler(listingService, insuranceService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService, lifecycleService, damageService, insuranceService)

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	damageHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	listingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	cancel()
	auditRelay.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
