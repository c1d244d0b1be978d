package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelgrid/wallet-backend/api/controllers"
	"github.com/parcelgrid/wallet-backend/api/middleware"
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
	pkgredis "github.com/parcelgrid/wallet-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *pkgredis.Client
	Wallets        *wallet.Service
	Ledger         *ledger.Service
	Holds          *holds.Service
	TopUps         *topups.Service
	Refunds        *refunds.Service
	Notifications  *notifications.Service
	Reconciliation *reconciliation.Service
	Metrics        *metrics.OperationMetrics
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Operations(p.Metrics))
		r.Use(middleware.ActorContext(logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/wallets", func(r chi.Router) {
			r.Post("/", controllers.CreateWallet(p.Wallets, logg))
			r.Route("/{walletId}", func(r chi.Router) {
				r.Get("/", controllers.GetWallet(p.Wallets, logg))
				r.Get("/balance", controllers.GetBalance(p.Wallets, logg))
				r.Get("/balance-at", controllers.GetBalanceAt(p.Wallets, p.Ledger, logg))
				r.Get("/statement", controllers.Statement(p.Wallets, p.Ledger, logg))
				r.Post("/debit", controllers.Debit(p.Wallets, logg))
				r.Post("/freeze", controllers.SetWalletStatus(p.Wallets, logg, "freeze"))
				r.Post("/unfreeze", controllers.SetWalletStatus(p.Wallets, logg, "unfreeze"))
				r.Post("/close", controllers.SetWalletStatus(p.Wallets, logg, "close"))
				r.Get("/refunds", controllers.ListWalletRefunds(p.Refunds, p.Wallets, logg))
				r.Get("/notifications", controllers.ListWalletNotifications(p.Notifications, p.Wallets, logg))
			})
		})

		r.Route("/holds", func(r chi.Router) {
			r.Post("/", controllers.CreateHold(p.Holds, p.Wallets, logg))
			r.Route("/{holdId}", func(r chi.Router) {
				r.Get("/", controllers.GetHold(p.Holds, p.Wallets, logg))
				r.Post("/capture", controllers.CaptureHold(p.Holds, p.Wallets, logg))
				r.Post("/release", controllers.ReleaseHold(p.Holds, p.Wallets, logg))
			})
		})

		r.Route("/topups", func(r chi.Router) {
			r.Post("/", controllers.InitiateTopUp(p.TopUps, logg))
			r.Route("/{topupId}", func(r chi.Router) {
				r.Get("/", controllers.GetTopUp(p.TopUps, logg))
				r.Post("/confirm", controllers.ConfirmTopUp(p.TopUps, logg))
				r.Post("/fail", controllers.FailTopUp(p.TopUps, logg))
			})
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Post("/", controllers.CreateRefund(p.Refunds, p.Wallets, logg))
			r.Get("/{refundId}", controllers.GetRefund(p.Refunds, p.Wallets, logg))
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/{entryId}", controllers.GetLedgerEntry(p.Ledger, p.Wallets, logg))
			r.Post("/{entryId}/reverse", controllers.ReverseEntry(p.Wallets, logg))
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", controllers.RunReconciliation(p.Reconciliation, logg))
			r.Get("/reports", controllers.ListReconciliationReports(p.Reconciliation, logg))
		})
	})

	return r
}
