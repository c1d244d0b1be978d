package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parcelgrid/wallet-backend/internal/audit"
	"github.com/parcelgrid/wallet-backend/internal/cron"
	"github.com/parcelgrid/wallet-backend/internal/gateway"
	"github.com/parcelgrid/wallet-backend/internal/holds"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/notifications"
	"github.com/parcelgrid/wallet-backend/internal/reconciliation"
	"github.com/parcelgrid/wallet-backend/internal/topups"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/config"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
	"github.com/parcelgrid/wallet-backend/pkg/metrics"
	"github.com/parcelgrid/wallet-backend/pkg/migrate"
	"github.com/parcelgrid/wallet-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	auditSink := audit.NewLogSink(logg)

	gatewayClient, err := gateway.New(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()

	ledgerRepo := ledger.NewRepository(gormDB)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{Repo: ledgerRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:       notifications.NewRepository(gormDB),
		Dispatcher: &notifications.LogDispatcher{Logg: logg},
		Logg:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		DB:            dbClient,
		Repo:          wallet.NewRepository(gormDB),
		Ledger:        ledgerSvc,
		Notifications: notificationsSvc,
		Audit:         auditSink,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	holdsSvc, err := holds.NewService(holds.ServiceParams{
		DB:         dbClient,
		Repo:       holds.NewRepository(gormDB),
		Wallets:    walletSvc,
		Ledger:     ledgerSvc,
		Audit:      auditSink,
		Logg:       logg,
		DefaultTTL: cfg.Hold.DefaultTTL,
		MaxTTL:     cfg.Hold.MaxTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create holds service", err)
		os.Exit(1)
	}

	topupsRepo := topups.NewRepository(gormDB)
	topupsSvc, err := topups.NewService(topups.ServiceParams{
		DB:         dbClient,
		Repo:       topupsRepo,
		Wallets:    walletSvc,
		Ledger:     ledgerSvc,
		Gateway:    gatewayClient,
		Audit:      auditSink,
		Logg:       logg,
		PendingTTL: cfg.TopUp.PendingTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create topups service", err)
		os.Exit(1)
	}

	reconciliationSvc, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repo:   reconciliation.NewRepository(gormDB),
		TopUps: topupsRepo,
		Ledger: ledgerRepo,
		Logg:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.Cron.LockKey), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()

	holdExpiryJob, err := cron.NewHoldExpiryJob(cron.HoldExpiryJobParams{
		Logger:    logg,
		Holds:     holdsSvc,
		BatchSize: cfg.Cron.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create hold expiry job", err)
		os.Exit(1)
	}
	registry.Register(holdExpiryJob)

	topupExpiryJob, err := cron.NewTopUpExpiryJob(cron.TopUpExpiryJobParams{
		Logger:    logg,
		TopUps:    topupsSvc,
		BatchSize: cfg.Cron.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create topup expiry job", err)
		os.Exit(1)
	}
	registry.Register(topupExpiryJob)

	autoTopUpJob, err := cron.NewAutoTopUpJob(cron.AutoTopUpJobParams{
		Logger: logg,
		TopUps: topupsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto topup job", err)
		os.Exit(1)
	}
	registry.Register(autoTopUpJob)

	reconciliationJob, err := cron.NewReconciliationJob(cron.ReconciliationJobParams{
		Logger:         logg,
		Reconciliation: reconciliationSvc,
		Gateway:        gatewayClient.Name(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation job", err)
		os.Exit(1)
	}
	registry.Register(reconciliationJob)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
