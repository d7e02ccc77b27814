package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	appledger "github.com/restopos/backend/internal/application/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/restopos/backend/internal/infrastructure/config"
	"github.com/restopos/backend/internal/infrastructure/event"
	"github.com/restopos/backend/internal/infrastructure/lock"
	"github.com/restopos/backend/internal/infrastructure/logger"
	"github.com/restopos/backend/internal/infrastructure/persistence"
	"github.com/restopos/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting POS ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, 200*time.Millisecond)
	db, err := persistence.NewDB(cfg, gormLog, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}()
	log.Info("Database connected")

	// Per-product locking: in-process by default, Redis when running
	// more than one terminal against the same database.
	var locker appledger.ProductLocker
	if cfg.Lock.Distributed {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = redisClient.Close()
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.WaitTimeout, log)
		log.Info("Using distributed product lock", zap.String("redis", cfg.Redis.Addr()))
	} else {
		locker = lock.NewKeyedMutex(cfg.Lock.WaitTimeout)
	}

	// Event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)
	lowStockHandler := appledger.NewLowStockHandler(log).
		WithNotifier(appledger.NewLoggingStockAlertNotifier(log))
	eventBus.Subscribe(lowStockHandler)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Ledger service
	defaultMin, err := decimal.NewFromString(cfg.Ledger.DefaultMinQuantity)
	if err != nil {
		log.Fatal("Invalid ledger.default_min_quantity",
			zap.String("value", cfg.Ledger.DefaultMinQuantity), zap.Error(err))
	}
	catalog := appledger.NewStaticCatalog(defaultMin)
	scope := persistence.NewGormTransactionScope(db)

	service := appledger.NewLedgerService(scope, catalog, locker, cfg.Ledger.ExpiryHorizon, log)
	service.SetEventPublisher(eventBus)

	if meterProvider.IsEnabled() {
		ledgerMetrics, err := telemetry.NewLedgerMetrics(meterProvider.Meter("pos-ledger"))
		if err != nil {
			log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
		}
		service.SetMetrics(ledgerMetrics)
	}

	// Expiry monitor
	if cfg.Ledger.ExpiryScanEnabled {
		monitor := appledger.NewExpiryMonitor(
			persistence.NewGormBatchRepository(db),
			eventBus,
			log,
		)
		go monitor.Run(ctx, cfg.Ledger.ExpiryScanInterval)
		log.Info("Expiry monitor started",
			zap.Duration("interval", cfg.Ledger.ExpiryScanInterval))
	}

	// Periodic attention report for back-office operators
	go runAttentionReport(ctx, service, cfg.Ledger.ExpiryScanInterval, log)

	log.Info("POS ledger ready")

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("POS ledger stopped")
}

// runAttentionReport logs products needing attention on every tick so the
// terminal's back office sees low-stock and expiry problems even when no
// threshold event fires.
func runAttentionReport(ctx context.Context, service *appledger.LedgerService, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summaries, err := service.ListNeedingAttention(ctx, shared.NewFilter())
			if err != nil {
				log.Error("Attention report failed", zap.Error(err))
				continue
			}
			for _, s := range summaries {
				log.Warn("Product needs attention",
					zap.String("product_id", s.ProductID.String()),
					zap.String("on_hand", s.OnHandQuantity.String()),
					zap.String("quantity_status", s.QuantityStatus),
					zap.String("expiry_status", s.ExpiryStatus),
				)
			}
		}
	}
}
