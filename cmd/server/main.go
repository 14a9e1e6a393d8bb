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

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/gateway"
	"storefront/internal/media"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	if cfg.Database.MigrateOnBoot {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrated")
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

	eventPublisher := broker.NewEventPublisher(producer)

	paymentGateway := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret)

	storage, err := media.NewStorage(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to configure media storage", zap.Error(err))
	}

	ctx := context.Background()
	if err := storage.EnsureBucket(ctx); err != nil {
		logger.Warn("Media bucket not ready, uploads will fail until it is", zap.Error(err))
	}

	inventoryClient := service.NewInventoryClient(db, redisClient)
	if err := inventoryClient.SyncStockToRedis(ctx); err != nil {
		logger.Warn("Failed to sync stock to Redis", zap.Error(err))
	}

	catalogService := service.NewCatalogService(db, redisClient, cfg.Business.ProductCacheTTL)
	cartService := service.NewCartService(redisClient, db, cfg.Business.CartTTL)
	couponService := service.NewCouponService(db)
	checkoutService := service.NewCheckoutService(
		db,
		db,
		db,
		redisClient,
		inventoryClient,
		paymentGateway,
		eventPublisher,
		service.CheckoutConfig{
			Currency:          cfg.Gateway.Currency,
			CODAdvancePercent: cfg.Business.CODAdvancePercent,
			ConfirmationPath:  cfg.Business.ConfirmationPath,
			StoreName:         cfg.Business.StoreName,
		},
	)
	reconciler := service.NewPaymentReconciler(db, paymentGateway, checkoutService, redisClient, cfg.Business.PaymentTimeout)
	adminService := service.NewAdminService(db, inventoryClient, catalogService, eventPublisher, cfg.Business.LowStockThreshold)
	contactService := service.NewContactService(db)
	activityRecorder := service.NewActivityRecorder(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	reconcileWorker := worker.NewReconcileWorker(reconciler, cfg.Business.ReconcileInterval)
	go func() {
		if err := reconcileWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Reconcile worker error", zap.Error(err))
		}
	}()

	activityConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	activityWorker := worker.NewActivityWorker(activityConsumer, activityRecorder)
	go func() {
		if err := activityWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Activity worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Deps{
		Catalog:  catalogService,
		Carts:    cartService,
		Coupons:  couponService,
		Checkout: checkoutService,
		Contact:  contactService,
		Admin:    adminService,
		Uploads:  storage,
		Auth: api.AuthConfig{
			AdminKey:     cfg.Admin.Key,
			AllowedEmail: cfg.Admin.AllowedEmail,
			TokenSecret:  cfg.Admin.TokenSecret,
		},
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Readiness: map[string]api.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	reconcileWorker.Stop()
	activityWorker.Stop()

	logger.Info("Server exited")
}
