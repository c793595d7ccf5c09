package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exchange-settlement/internal/config"
	"github.com/exchange-settlement/internal/handler"
	"github.com/exchange-settlement/internal/metrics"
	"github.com/exchange-settlement/internal/middleware"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/repository"
	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := middleware.InitLogger(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}

	// Initialize Redis
	rdb := initRedis(cfg)

	// Auto migrate database
	if err := db.AutoMigrate(models.All()...); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}

	metrics.Register()

	// Initialize repositories
	walletRepo := repository.NewWalletRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	futuresRepo := repository.NewFuturesOrderRepository(db)
	p2pRepo := repository.NewP2PRepository(db)
	profitRepo := repository.NewAdminProfitRepository(db)
	pnlRepo := repository.NewWalletPnLRepository(db)
	priceRepo := repository.NewPriceRepository(db)

	// Notifications
	var notifier service.Notifier = service.NewLogNotifier(zlog)
	if cfg.NATS.URL != "" {
		natsNotifier, err := service.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			zlog.Warn("nats unavailable, notifications will only be logged", zap.Error(err))
		} else {
			defer natsNotifier.Close()
			notifier = natsNotifier
		}
	}
	dispatcher := service.NewDispatcher(notifier, cfg.NATS.Workers, cfg.NATS.Buffer, zlog.Named("notify"))
	dispatcher.Start()

	// Initialize services
	authService := service.NewAuthService(cfg.JWT)
	marketService := service.NewMarketService(marketRepo, zlog.Named("markets"))
	ledger := service.NewWalletLedger(db, walletRepo, zlog.Named("ledger"))
	profits := service.NewAdminProfitLedger(db, profitRepo, zlog.Named("profit"))
	orderSettlement := service.NewOrderSettlement(db, orderRepo, marketService, ledger, profits, zlog.Named("exchange"))
	futuresSettlement := service.NewFuturesSettlement(
		db,
		futuresRepo,
		marketService,
		ledger,
		profits,
		models.WalletType(cfg.Settlement.FuturesFundingType),
		zlog.Named("futures"),
	)
	p2pEngine := service.NewP2PTradeEngine(db, p2pRepo, dispatcher, cfg.P2P.AdminUserIDs, zlog.Named("p2p"))
	priceService := service.NewPriceService(db, priceRepo, service.NewRedisTickerSource(rdb, cfg.Valuation.TickerQuote), zlog.Named("prices"))
	pnlService := service.NewPnLService(db, pnlRepo)

	if err := marketService.Start(context.Background()); err != nil {
		zlog.Fatal("failed to load markets", zap.Error(err))
	}

	// Valuation cron
	valuationWorker := worker.NewValuationWorker(db, walletRepo, pnlRepo, priceService, worker.ValuationOptions{
		Interval:          cfg.Valuation.Interval,
		Concurrency:       cfg.Valuation.Concurrency,
		UserTimeout:       cfg.Valuation.UserTimeout,
		RetentionDays:     cfg.Valuation.RetentionDays,
		ZeroRetentionDays: cfg.Valuation.ZeroRetentionDays,
	}, zlog.Named("valuation"))
	if cfg.Valuation.Enabled {
		go valuationWorker.Start()
	}

	// Initialize handlers
	walletHandler := handler.NewWalletHandler(ledger)
	orderHandler := handler.NewOrderHandler(orderSettlement)
	futuresHandler := handler.NewFuturesHandler(futuresSettlement)
	p2pHandler := handler.NewP2PHandler(p2pEngine)
	reportHandler := handler.NewReportHandler(pnlService, profits)

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware(zlog.Named("http")))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
		})
	})
	router.GET("/metrics", metrics.Handler())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		authMiddleware := middleware.AuthMiddleware(authService)
		walletHandler.RegisterRoutes(v1, authMiddleware)
		orderHandler.RegisterRoutes(v1, authMiddleware)
		futuresHandler.RegisterRoutes(v1, authMiddleware)
		p2pHandler.RegisterRoutes(v1, authMiddleware)
		reportHandler.RegisterRoutes(v1, authMiddleware)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("starting server", zap.String("addr", addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	valuationWorker.Stop()
	marketService.Stop()
	dispatcher.Stop()

	// Close Redis connection
	if err := rdb.Close(); err != nil {
		zlog.Warn("error closing redis connection", zap.Error(err))
	}

	zlog.Info("server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
