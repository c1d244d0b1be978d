package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/api/middleware"
	"github.com/parcelgrid/wallet-backend/api/responses"
	"github.com/parcelgrid/wallet-backend/api/validators"
	"github.com/parcelgrid/wallet-backend/internal/refunds"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
	"github.com/parcelgrid/wallet-backend/pkg/pagination"
	"github.com/parcelgrid/wallet-backend/pkg/types"
)

type refundRequest struct {
	OriginalEntryID string `json:"original_entry_id" validate:"required,uuid"`
	Amount          string `json:"amount" validate:"required"`
	Reason          string `json:"reason" validate:"required,max=256"`
	IdempotencyKey  string `json:"idempotency_key" validate:"required,max=128"`
}

// CreateRefund credits the wallet back against a posted debit. Cumulative
// refunds never exceed the original amount.
func CreateRefund(svc *refunds.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entryID, err := uuid.Parse(req.OriginalEntryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid original entry id"))
			return
		}
		amountCents, err := types.CentsFromAmount(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		refund, err := svc.Refund(r.Context(), refunds.RefundParams{
			OriginalEntryID: entryID,
			AmountCents:     amountCents,
			Reason:          validators.SanitizeString(req.Reason, 256),
			IdempotencyKey:  validators.SanitizeString(req.IdempotencyKey, 128),
			Actor:           middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := walletCurrency(r, wallets, refund.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newRefundView(refund, currency))
	}
}

// GetRefund loads one refund.
func GetRefund(svc *refunds.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refundID, err := pathUUID(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refund, err := svc.Get(r.Context(), refundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := walletCurrency(r, wallets, refund.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundView(refund, currency))
	}
}

// ListWalletRefunds returns the wallet's most recent refunds.
func ListWalletRefunds(svc *refunds.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
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

		views := make([]refundView, 0, len(items))
		for i := range items {
			views = append(views, newRefundView(&items[i], currency))
		}
		responses.WriteSuccess(w, views)
	}
}
