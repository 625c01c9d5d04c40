package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/axis-ledger/internal/api"
	"github.com/ayo6706/axis-ledger/internal/api/middleware"
	"github.com/ayo6706/axis-ledger/internal/config"
	"github.com/ayo6706/axis-ledger/internal/db"
	"github.com/ayo6706/axis-ledger/internal/idempotency"
	"github.com/ayo6706/axis-ledger/internal/lock"
	"github.com/ayo6706/axis-ledger/internal/observability"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/ayo6706/axis-ledger/internal/repository/memory"
	"github.com/ayo6706/axis-ledger/internal/service"
	"github.com/ayo6706/axis-ledger/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// backend is the storage selected by STORE_DRIVER.
type backend struct {
	store service.QueryStore
	keys  repository.IdempotencyQuerier
	db    *pgxpool.Pool
	close func()
}

// Run bootstraps the HTTP server and reconciliation worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()
	logger.Info("ledger store ready", zap.String("driver", cfg.StoreDriver))

	var redisClient redis.Cmdable
	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisClient = client
	}

	ledgerOpts := []service.LedgerOption{service.WithUnitTimeout(cfg.LedgerUnitTimeout)}
	if cfg.AccountLockEnabled {
		ledgerOpts = append(ledgerOpts, service.WithAccountLocker(lock.NewRedisLocker(redisClient, cfg.AccountLockTTL)))
		logger.Info("account locking enabled", zap.Duration("ttl", cfg.AccountLockTTL))
	}
	ledgerSvc := service.NewLedgerService(be.store, ledgerOpts...)
	accountSvc := service.NewAccountService(be.store)

	reconSvc := service.NewReconciliationService(be.store, cfg.PendingMaxAge)
	reconWorker := worker.NewReconciliationWorker(reconSvc).WithInterval(cfg.ReconciliationInterval)
	stopWorker := reconWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval), zap.Duration("pending_max_age", cfg.PendingMaxAge))

	deps := api.Dependencies{
		Ledger:      ledgerSvc,
		Accounts:    accountSvc,
		Idempotency: idempotency.NewStore(redisClient, be.keys, cfg.IdempotencyTTL),
		Redis:       redisClient,
	}
	if be.db != nil {
		deps.DB = be.db
	}
	router := api.NewRouter(cfg, logger, deps)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping reconciliation worker")
	stopWorker()

	logger.Info("shutdown complete")
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return &backend{
			store: memory.NewStore(),
			keys:  memory.NewIdempotencyKeys(),
			close: func() {},
		}, nil
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		return &backend{
			store: repository.NewStore(pool),
			keys:  repository.New(pool),
			db:    pool,
			close: pool.Close,
		}, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
