package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/api/middleware"
	"github.com/parcelgrid/wallet-backend/api/responses"
	"github.com/parcelgrid/wallet-backend/api/validators"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
	"github.com/parcelgrid/wallet-backend/pkg/pagination"
	"github.com/parcelgrid/wallet-backend/pkg/types"
)

type createWalletRequest struct {
	AccountID           string `json:"account_id" validate:"required,uuid"`
	Currency            string `json:"currency" validate:"required"`
	LowBalanceThreshold string `json:"low_balance_threshold,omitempty"`
}

// CreateWallet provisions the wallet for (account, currency), returning the
// existing one when it is already provisioned.
func CreateWallet(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createWalletRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := uuid.Parse(req.AccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account id"))
			return
		}
		currency, err := enums.ParseCurrency(req.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}

		var thresholdCents int64
		if req.LowBalanceThreshold != "" {
			thresholdCents, err = types.CentsFromAmount(req.LowBalanceThreshold)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid low balance threshold"))
				return
			}
		}

		created, err := svc.GetOrCreate(r.Context(), wallet.GetOrCreateParams{
			AccountID:                accountID,
			Currency:                 currency,
			LowBalanceThresholdCents: thresholdCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newWalletView(created))
	}
}

// GetWallet returns the wallet by id.
func GetWallet(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := pathUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		found, err := svc.Get(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletView(found))
	}
}

// GetBalance returns the wallet's current balance snapshot.
func GetBalance(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := pathUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceView(balance))
	}
}

// GetBalanceAt reconstructs the available balance at a historical instant
// from the ledger.
func GetBalanceAt(wallets *wallet.Service, entries *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := pathUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		at, err := validators.ParseQueryTime(r, "at")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if at == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at query parameter is required"))
			return
		}

		found, err := wallets.Get(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cents, err := entries.BalanceAt(r.Context(), walletID, *at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"wallet_id": walletID.String(),
			"at":        at,
			"available": types.MoneyFromCents(cents, string(found.Currency)),
		})
	}
}

type debitRequest struct {
	Amount        string `json:"amount" validate:"required"`
	Currency      string `json:"currency" validate:"required"`
	ReferenceType string `json:"reference_type" validate:"required,max=64"`
	ReferenceID   string `json:"reference_id" validate:"required,max=128"`
	CorrelationID string `json:"correlation_id,omitempty" validate:"omitempty,max=128"`
}

// Debit charges the wallet immediately. A repeat of the same reference
// returns the originally posted entry.
func Debit(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := pathUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req debitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
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

		entry, err := svc.DirectDebit(r.Context(), wallet.DirectDebitParams{
			WalletID:      walletID,
			AmountCents:   amountCents,
			Currency:      currency,
			ReferenceType: validators.SanitizeString(req.ReferenceType, 64),
			ReferenceID:   validators.SanitizeString(req.ReferenceID, 128),
			CorrelationID: validators.SanitizeString(req.CorrelationID, 128),
			Actor:         middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newEntryView(entry, req.Currency))
	}
}

// SetWalletStatus drives the freeze/unfreeze/close transitions. The action is
// baked into the route.
func SetWalletStatus(svc *wallet.Service, logg *logger.Logger, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := pathUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := wallet.SetStatusParams{
			WalletID: walletID,
			Actor:    middleware.ActorFromContext(r.Context()),
		}

		var updated *models.Wallet
		switch action {
		case "freeze":
			updated, err = svc.Freeze(r.Context(), params)
		case "unfreeze":
			updated, err = svc.Unfreeze(r.Context(), params)
		case "close":
			updated, err = svc.Close(r.Context(), params)
		default:
			err = pkgerrors.New(pkgerrors.CodeInternal, "unknown wallet action")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletView(updated))
	}
}

// Statement returns a cursor-paginated page of the wallet's ledger,
// newest first.
func Statement(wallets *wallet.Service, entries *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := pathUUID(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := wallets.Get(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var entryTypes []enums.TransactionType
		if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				parsed, parseErr := enums.ParseTransactionType(strings.TrimSpace(part))
				if parseErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid entry type filter"))
					return
				}
				entryTypes = append(entryTypes, parsed)
			}
		}

		result, err := entries.Statement(r.Context(), ledger.StatementParams{
			WalletID: walletID,
			Types:    entryTypes,
			From:     from,
			To:       to,
			Limit:    limit,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStatementView(result, string(found.Currency)))
	}
}
