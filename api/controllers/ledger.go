package controllers

import (
	"net/http"

	"github.com/parcelgrid/wallet-backend/api/middleware"
	"github.com/parcelgrid/wallet-backend/api/responses"
	"github.com/parcelgrid/wallet-backend/api/validators"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

// GetLedgerEntry loads one posted entry.
func GetLedgerEntry(entries *ledger.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := pathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := entries.FindByID(r.Context(), entryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := walletCurrency(r, wallets, entry.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newEntryView(entry, currency))
	}
}

type reverseEntryRequest struct {
	CorrelationID string `json:"correlation_id,omitempty" validate:"omitempty,max=128"`
}

// ReverseEntry appends the opposite entry and moves the balance back.
func ReverseEntry(wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := pathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req reverseEntryRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := wallets.ReverseEntry(r.Context(), wallet.ReverseEntryParams{
			EntryID:       entryID,
			CorrelationID: validators.SanitizeString(req.CorrelationID, 128),
			Actor:         middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := walletCurrency(r, wallets, entry.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newEntryView(entry, currency))
	}
}
