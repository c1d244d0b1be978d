package controllers

import (
	"net/http"

	"github.com/parcelgrid/wallet-backend/api/responses"
	"github.com/parcelgrid/wallet-backend/api/validators"
	"github.com/parcelgrid/wallet-backend/internal/notifications"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
	"github.com/parcelgrid/wallet-backend/pkg/pagination"
)

// ListWalletNotifications returns the wallet's low-balance notifications,
// newest first.
func ListWalletNotifications(svc *notifications.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := pathUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := walletCurrency(r, wallets, walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListByWallet(r.Context(), walletID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]notificationView, 0, len(items))
		for i := range items {
			views = append(views, newNotificationView(&items[i], currency))
		}
		responses.WriteSuccess(w, views)
	}
}
