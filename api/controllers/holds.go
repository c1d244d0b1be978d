package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/api/middleware"
	"github.com/parcelgrid/wallet-backend/api/responses"
	"github.com/parcelgrid/wallet-backend/api/validators"
	"github.com/parcelgrid/wallet-backend/internal/holds"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
	"github.com/parcelgrid/wallet-backend/pkg/types"
)

type createHoldRequest struct {
	WalletID       string `json:"wallet_id" validate:"required,uuid"`
	Amount         string `json:"amount" validate:"required"`
	ReferenceType  string `json:"reference_type" validate:"required,max=64"`
	ReferenceID    string `json:"reference_id" validate:"required,max=128"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=128"`
	TTLSeconds     int64  `json:"ttl_seconds,omitempty" validate:"omitempty,min=1"`
}

// CreateHold reserves funds against the wallet's effective balance.
func CreateHold(svc *holds.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createHoldRequest
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

		hold, err := svc.Create(r.Context(), holds.CreateParams{
			WalletID:       walletID,
			AmountCents:    amountCents,
			ReferenceType:  validators.SanitizeString(req.ReferenceType, 64),
			ReferenceID:    validators.SanitizeString(req.ReferenceID, 128),
			IdempotencyKey: validators.SanitizeString(req.IdempotencyKey, 128),
			TTL:            time.Duration(req.TTLSeconds) * time.Second,
			Actor:          middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := walletCurrency(r, wallets, hold.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newHoldView(hold, currency))
	}
}

// GetHold loads one hold.
func GetHold(svc *holds.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdID, err := pathUUID(r, "holdId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		hold, err := svc.Get(r.Context(), holdID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := walletCurrency(r, wallets, hold.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newHoldView(hold, currency))
	}
}

type captureHoldRequest struct {
	Amount        string `json:"amount,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty" validate:"omitempty,max=128"`
}

// CaptureHold converts the reservation into a posted debit. An omitted
// amount captures the full hold; a smaller one releases the remainder.
func CaptureHold(svc *holds.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdID, err := pathUUID(r, "holdId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req captureHoldRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var amountCents int64
		if req.Amount != "" {
			amountCents, err = types.CentsFromAmount(req.Amount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
				return
			}
		}

		entry, err := svc.Capture(r.Context(), holds.CaptureParams{
			HoldID:        holdID,
			AmountCents:   amountCents,
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

// ReleaseHold returns the reserved funds without posting a ledger entry.
func ReleaseHold(svc *holds.Service, wallets *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdID, err := pathUUID(r, "holdId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.Release(r.Context(), holds.ReleaseParams{
			HoldID: holdID,
			Actor:  middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := walletCurrency(r, wallets, hold.WalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newHoldView(hold, currency))
	}
}

func walletCurrency(r *http.Request, wallets *wallet.Service, walletID uuid.UUID) (string, error) {
	found, err := wallets.Get(r.Context(), walletID)
	if err != nil {
		return "", err
	}
	return string(found.Currency), nil
}
