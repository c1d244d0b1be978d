package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parcelgrid/wallet-backend/api/routes"
	"github.com/parcelgrid/wallet-backend/internal/audit"
	"github.com/parcelgrid/wallet-backend/internal/gateway"
	"github.com/parcelgrid/wallet-backend/internal/holds"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/notifications"
	"github.com/parcelgrid/wallet-backend/internal/reconciliation"
	"github.com/parcelgrid/wallet-backend/internal/refunds"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	auditSink, cleanupAudit, err := buildAuditSink(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap audit sink", err)
		os.Exit(1)
	}
	defer cleanupAudit()

	gatewayClient, err := gateway.New(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	svcs, err := buildServices(dbClient, logg, auditSink, gatewayClient, cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"gateway": gatewayClient.Name(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Wallets:        svcs.wallets,
			Ledger:         svcs.ledger,
			Holds:          svcs.holds,
			TopUps:         svcs.topups,
			Refunds:        svcs.refunds,
			Notifications:  svcs.notifications,
			Reconciliation: svcs.reconciliation,
			Metrics:        metrics.NewOperationMetrics(prometheus.DefaultRegisterer),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

type services struct {
	wallets        *wallet.Service
	ledger         *ledger.Service
	holds          *holds.Service
	topups         *topups.Service
	refunds        *refunds.Service
	notifications  *notifications.Service
	reconciliation *reconciliation.Service
}

func buildServices(dbClient *db.Client, logg *logger.Logger, auditSink audit.Sink, gatewayClient gateway.Client, cfg *config.Config) (*services, error) {
	gormDB := dbClient.DB()

	ledgerRepo := ledger.NewRepository(gormDB)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{Repo: ledgerRepo})
	if err != nil {
		return nil, err
	}

	notificationsSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:       notifications.NewRepository(gormDB),
		Dispatcher: &notifications.LogDispatcher{Logg: logg},
		Logg:       logg,
	})
	if err != nil {
		return nil, err
	}

	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		DB:            dbClient,
		Repo:          wallet.NewRepository(gormDB),
		Ledger:        ledgerSvc,
		Notifications: notificationsSvc,
		Audit:         auditSink,
	})
	if err != nil {
		return nil, err
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
		return nil, err
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
		return nil, err
	}

	refundsSvc, err := refunds.NewService(refunds.ServiceParams{
		DB:      dbClient,
		Repo:    refunds.NewRepository(gormDB),
		Wallets: walletSvc,
		Ledger:  ledgerSvc,
		Audit:   auditSink,
	})
	if err != nil {
		return nil, err
	}

	reconciliationSvc, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repo:   reconciliation.NewRepository(gormDB),
		TopUps: topupsRepo,
		Ledger: ledgerRepo,
		Logg:   logg,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		wallets:        walletSvc,
		ledger:         ledgerSvc,
		holds:          holdsSvc,
		topups:         topupsSvc,
		refunds:        refundsSvc,
		notifications:  notificationsSvc,
		reconciliation: reconciliationSvc,
	}, nil
}

func buildAuditSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (audit.Sink, func(), error) {
	if !cfg.Audit.PubSubEnabled {
		return audit.NewLogSink(logg), func() {}, nil
	}
	sink, err := audit.NewPubSubSink(ctx, cfg.Audit, logg)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { _ = sink.Close() }, nil
}
