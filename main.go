// Package main provides the main entry point for the VoteFlow campaign orchestrator
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voteflow/voteflow/app/handlers"
	"github.com/voteflow/voteflow/app/router"
	"github.com/voteflow/voteflow/app/services"
	businessflow "github.com/voteflow/voteflow/business_flow"
	"github.com/voteflow/voteflow/config"
	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.Config
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)
	log.Println("Starting VoteFlow orchestrator...")

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging directs the standard logger at stdout or a rotating file
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output != "file" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(&models.QuotaRecord{}, &models.Campaign{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeExtractionService selects the extraction client by configuration
func initializeExtractionService(cfg config.ExtractionConfig) services.ExtractionService {
	if cfg.Domain == "mock" {
		return services.NewMockExtractionService()
	}
	return services.NewHTTPExtractionService(cfg.Domain, cfg.Timeout)
}

// initializeEngineService selects the engine client by configuration
func initializeEngineService(cfg config.EngineConfig) services.CampaignEngineService {
	if cfg.Domain == "mock" {
		return services.NewMockCampaignEngineService()
	}
	return services.NewHTTPCampaignEngineService(cfg.Domain, cfg.Timeout)
}

// initializeGatewayService selects the payment gateway client by configuration
func initializeGatewayService(cfg config.GatewayConfig) services.PaymentGatewayService {
	if cfg.Domain == "mock" {
		return services.NewMockPaymentGatewayService()
	}
	return services.NewHTTPPaymentGatewayService(cfg.Domain, cfg.CheckoutURL, cfg.Timeout)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Repositories
	quotaRepo := repository.NewQuotaRecordRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	quotaStore := repository.NewGormQuotaStore(quotaRepo, db)

	// Remote collaborators
	extractionService := initializeExtractionService(cfg.Extraction)
	engineService := initializeEngineService(cfg.Engine)
	gatewayService := initializeGatewayService(cfg.Gateway)

	var replayGuard businessflow.ReplayGuard
	if rc != nil {
		replayGuard = businessflow.NewRedisReplayGuard(rc, cfg.Cache.RedisPrefix)
	} else {
		replayGuard = businessflow.NewMemoryReplayGuard()
	}

	telemetryDialer := services.NewWebsocketDialer(cfg.Telemetry.Domain, cfg.Telemetry.HandshakeTimeout)
	telemetryChannel := services.NewTelemetryChannel(telemetryDialer, cfg.Telemetry.LogCapacity)
	stopFuncs = append(stopFuncs, telemetryChannel.Close)

	// Flows
	ingestionFlow := businessflow.NewIngestionFlow(extractionService)
	paymentFlow := businessflow.NewPaymentFlow(gatewayService, replayGuard, quotaStore)
	wizardFlow := businessflow.NewWizardFlow(
		ingestionFlow,
		paymentFlow,
		engineService,
		campaignRepo,
		cfg.Wizard.BypassOperators,
	)
	consoleFlow := businessflow.NewConsoleFlow(
		telemetryChannel,
		engineService,
		wizardFlow,
		campaignRepo,
	)

	// Handlers and router
	wizardHandler := handlers.NewWizardHandler(wizardFlow)
	consoleHandler := handlers.NewConsoleHandler(consoleFlow)
	appRouter := router.NewFiberRouter(cfg, wizardHandler, consoleHandler)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
