package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/api"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/api/handlers"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/events"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/metrics"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/refdata"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
	catalogstore "github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository/firestore"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository/postgres"
	pinstore "github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository/redis"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/service"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/shopify"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/telemetry"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/tenancy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting storefront checkout server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Insecure:     cfg.Environment != "production",
	}, logger)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	tables, err := refdata.LoadFile(cfg.RefDataPath)
	if err != nil {
		logger.Fatal("Failed to load reference data", zap.Error(err), zap.String("path", cfg.RefDataPath))
	}
	logger.Info("Reference data loaded",
		zap.Int("markets", len(tables.Markets)),
		zap.Int("locations", tables.Locations.Len()),
	)

	checkoutMetrics := metrics.New(prometheus.DefaultRegisterer)
	platform := shopify.NewClient(cfg.Shopify, logger, shopify.WithObserver(checkoutMetrics))

	// Catalog store
	fsClient, err := catalogstore.NewClient(ctx, cfg.Firestore, logger)
	if err != nil {
		logger.Fatal("Failed to connect to catalog store", zap.Error(err))
	}
	defer fsClient.Close()

	repos := &repository.Repositories{
		Catalog: catalogstore.NewCatalogRepository(fsClient, cfg.Firestore.RootCollection, logger),
	}

	// Idempotency keys and the audit log are optional
	if cfg.Database.Enabled() {
		db, err := postgres.NewConnection(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		postgres.NewRepositories(db, repos, logger)
	} else {
		logger.Warn("No database configured; idempotency keys and audit log disabled")
	}

	if cfg.Redis.Addr != "" {
		rdb := pinstore.NewClient(cfg.Redis)
		defer rdb.Close()
		repos.SessionPin = pinstore.NewSessionPinRepository(rdb, cfg.Redis.PinTTL, logger)
	} else {
		logger.Warn("No Redis configured; session pins kept in memory")
		repos.SessionPin = tenancy.NewMemoryPinStore(cfg.Redis.PinTTL)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Brokers != "" {
		publisher, err = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.CheckoutTopic, logger)
		if err != nil {
			logger.Fatal("Failed to create event publisher", zap.Error(err))
		}
	}
	defer publisher.Close()

	resolver, err := tenancy.NewResolver(cfg.Tenancy, tables.Markets, repos.SessionPin, logger)
	if err != nil {
		logger.Fatal("Invalid tenancy configuration", zap.Error(err))
	}

	variants := service.NewVariantResolver(repos.Catalog, cfg.Checkout.FanOut, logger)
	validator := service.NewValidator(variants, repos.Catalog, platform, tables.Markets, tables.Locations, cfg.Checkout.FanOut, logger)
	orchestrator := service.NewOrchestrator(validator, platform, cfg.Checkout, logger)

	// Initialize router
	router := api.NewRouter(cfg, handlers.CheckoutDeps{
		Validator:    validator,
		Orchestrator: orchestrator,
		Tenancy:      resolver,
		Repos:        repos,
		Events:       publisher,
		Metrics:      checkoutMetrics,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server exited")
}
