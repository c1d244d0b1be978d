package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/api/middleware"
	"github.com/parcelgrid/wallet-backend/api/responses"
	"github.com/parcelgrid/wallet-backend/api/validators"
	"github.com/parcelgrid/wallet-backend/internal/topups"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
	"github.com/parcelgrid/wallet-backend/pkg/types"
)

type initiateTopUpRequest struct {
	WalletID       string `json:"wallet_id" validate:"required,uuid"`
	Amount         string `json:"amount" validate:"required"`
	Currency       string `json:"currency" validate:"required"`
	SourceID       string `json:"source_id" validate:"required,max=128"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=128"`
}

// InitiateTopUp records the pending top-up, charges the gateway, and
// finalizes with the outcome.
func InitiateTopUp(svc *topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req initiateTopUpRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		walletID, err := uuid.Parse(req.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet id"))
			return
		}
		amountCents, err := types.CentsFromAmount(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}
		currency, err := enums.ParseCurrency(req.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}

		topup, err := svc.Initiate(r.Context(), topups.InitiateParams{
			WalletID:       walletID,
			AmountCents:    amountCents,
			Currency:       currency,
			SourceID:       validators.SanitizeString(req.SourceID, 128),
			IdempotencyKey: validators.SanitizeString(req.IdempotencyKey, 128),
			Actor:          middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTopUpView(topup))
	}
}

// GetTopUp loads one top-up.
func GetTopUp(svc *topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topupID, err := pathUUID(r, "topupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		topup, err := svc.Get(r.Context(), topupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTopUpView(topup))
	}
}

type confirmTopUpRequest struct {
	GatewayReference string `json:"gateway_reference" validate:"required,max=128"`
}

// ConfirmTopUp credits the wallet for a pending top-up. Reserved for gateway
// callbacks and operators recovering a crashed confirmation.
func ConfirmTopUp(svc *topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topupID, err := pathUUID(r, "topupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmTopUpRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		topup, err := svc.Confirm(r.Context(), topups.ConfirmParams{
			TopUpID:          topupID,
			GatewayReference: validators.SanitizeString(req.GatewayReference, 128),
			Actor:            middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTopUpView(topup))
	}
}

type failTopUpRequest struct {
	Reason string `json:"reason" validate:"required,max=256"`
}

// FailTopUp finalizes a pending top-up without crediting.
func FailTopUp(svc *topups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topupID, err := pathUUID(r, "topupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req failTopUpRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		topup, err := svc.Fail(r.Context(), topups.FailParams{
			TopUpID: topupID,
			Reason:  validators.SanitizeString(req.Reason, 256),
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTopUpView(topup))
	}
}
