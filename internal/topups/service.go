package topups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/internal/audit"
	"github.com/parcelgrid/wallet-backend/internal/gateway"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

const expiredReason = "pending window elapsed"

// ServiceParams groups dependencies for the top-up service.
type ServiceParams struct {
	DB         db.TxRunner
	Repo       Repository
	Wallets    *wallet.Service
	Ledger     *ledger.Service
	Gateway    gateway.Client
	Audit      audit.Sink
	Logg       *logger.Logger
	PendingTTL time.Duration
}

// Service funds wallets through the external gateway. A top-up has no
// balance effect until Confirm: the gateway call happens between the pending
// insert and the confirming transaction, never inside a wallet lock.
type Service struct {
	dbc        db.TxRunner
	repo       Repository
	wallets    *wallet.Service
	ledger     *ledger.Service
	gateway    gateway.Client
	audit      audit.Sink
	logg       *logger.Logger
	pendingTTL time.Duration
}

// NewService wires a top-up service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Wallets == nil {
		return nil, errors.New("wallet service is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway client is required")
	}
	if params.PendingTTL <= 0 {
		params.PendingTTL = time.Hour
	}
	return &Service{
		dbc:        params.DB,
		repo:       params.Repo,
		wallets:    params.Wallets,
		ledger:     params.Ledger,
		gateway:    params.Gateway,
		audit:      params.Audit,
		logg:       params.Logg,
		pendingTTL: params.PendingTTL,
	}, nil
}

// InitiateParams describes a funding request.
type InitiateParams struct {
	WalletID       uuid.UUID
	AmountCents    int64
	Currency       enums.Currency
	SourceID       string
	IdempotencyKey string
	Actor          string
}

// Initiate records the pending top-up, charges the gateway, and finalizes
// with the outcome. Replaying the same idempotency key returns the existing
// row without contacting the gateway again.
func (s *Service) Initiate(ctx context.Context, params InitiateParams) (*models.TopUp, error) {
	if params.WalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, params.IdempotencyKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up top-up idempotency key")
	}
	if existing != nil {
		if existing.WalletID != params.WalletID || existing.AmountCents != params.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different parameters")
		}
		return existing, nil
	}

	w, err := s.wallets.Get(ctx, params.WalletID)
	if err != nil {
		return nil, err
	}
	if !w.Status.CanMutate() {
		return nil, pkgerrors.New(pkgerrors.CodeWalletInactive, "wallet does not accept top-ups").
			WithDetails(map[string]any{"status": w.Status})
	}
	if params.Currency != "" && params.Currency != w.Currency {
		return nil, pkgerrors.New(pkgerrors.CodeCurrencyMismatch, "currency does not match the wallet").
			WithDetails(map[string]any{"wallet_currency": w.Currency, "requested": params.Currency})
	}

	topup := &models.TopUp{
		WalletID:       w.ID,
		AmountCents:    params.AmountCents,
		Currency:       w.Currency,
		Status:         enums.TopUpStatusPending,
		IdempotencyKey: params.IdempotencyKey,
		Gateway:        s.gateway.Name(),
		ExpiresAt:      time.Now().UTC().Add(s.pendingTTL),
	}
	if err := s.repo.Create(ctx, topup); err != nil {
		if db.IsUniqueViolation(err, "uq_topups_idempotency_key") {
			again, findErr := s.repo.FindByIdempotencyKey(ctx, params.IdempotencyKey)
			if findErr == nil && again != nil {
				return again, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating top-up")
	}

	audit.Emit(ctx, s.audit, audit.Event{
		Type:     "topup.initiated",
		WalletID: w.ID,
		Actor:    params.Actor,
		Payload: map[string]any{
			"topup_id":     topup.ID.String(),
			"amount_cents": topup.AmountCents,
			"gateway":      topup.Gateway,
		},
	})

	// Gateway call runs outside any wallet-locking transaction. A crash here
	// leaves a pending row for the expiry sweep.
	result, chargeErr := s.gateway.Charge(ctx, gateway.ChargeRequest{
		TopUpID:        topup.ID,
		AmountCents:    topup.AmountCents,
		Currency:       topup.Currency,
		SourceID:       params.SourceID,
		IdempotencyKey: fmt.Sprintf("topup-%s", topup.ID),
	})
	if chargeErr != nil {
		failed, failErr := s.Fail(ctx, FailParams{
			TopUpID: topup.ID,
			Reason:  chargeErr.Error(),
		})
		if failErr != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "marking top-up failed after gateway decline", failErr)
			}
			return nil, chargeErr
		}
		return failed, nil
	}

	return s.Confirm(ctx, ConfirmParams{
		TopUpID:          topup.ID,
		GatewayReference: result.Reference,
		Actor:            params.Actor,
	})
}

// ConfirmParams finalizes a pending top-up after the gateway settled it.
type ConfirmParams struct {
	TopUpID          uuid.UUID
	GatewayReference string
	Actor            string
}

// Confirm credits the wallet exactly once. Confirming an already-successful
// top-up is a no-op returning the existing row; confirming a failed or
// expired one is a state conflict. An expired pending row is finalized as
// failed here even when the sweep has not reached it yet.
func (s *Service) Confirm(ctx context.Context, params ConfirmParams) (*models.TopUp, error) {
	if params.TopUpID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up id is required")
	}

	var topup *models.TopUp
	credited := false
	expired := false

	err := s.dbc.WithTxRetry(ctx, func(tx *gorm.DB) error {
		credited = false
		expired = false
		repo := s.repo.WithTx(tx)

		var err error
		topup, err = s.loadTopUp(ctx, repo, params.TopUpID)
		if err != nil {
			return err
		}

		w, err := s.wallets.LockForUpdate(ctx, tx, topup.WalletID)
		if err != nil {
			return err
		}

		topup, err = s.loadTopUp(ctx, repo, params.TopUpID)
		if err != nil {
			return err
		}
		if topup.Status == enums.TopUpStatusSuccess {
			return nil
		}
		if topup.Status == enums.TopUpStatusFailed {
			return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "top-up already failed").
				WithDetails(map[string]any{"failure_reason": topup.FailureReason})
		}
		if time.Now().UTC().After(topup.ExpiresAt) {
			reason := expiredReason
			topup.Status = enums.TopUpStatusFailed
			topup.FailureReason = &reason
			if err := repo.Save(ctx, topup); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalizing expired top-up")
			}
			expired = true
			return nil
		}

		entry, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			WalletID:      w.ID,
			Direction:     enums.EntryDirectionCredit,
			AmountCents:   topup.AmountCents,
			Type:          enums.TransactionTypeTopUp,
			ReferenceType: "topup",
			ReferenceID:   topup.ID.String(),
			CorrelationID: topup.ID.String(),
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		topup.Status = enums.TopUpStatusSuccess
		topup.ConfirmedAt = &now
		if params.GatewayReference != "" {
			topup.GatewayReference = &params.GatewayReference
		}
		if err := repo.Save(ctx, topup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalizing top-up")
		}

		w.AvailableCents += topup.AmountCents
		w.TotalCreditedCents += topup.AmountCents
		if w.AvailableCents != entry.RunningBalanceCents {
			return pkgerrors.New(pkgerrors.CodeLedgerWrite, "running balance diverged from wallet balance")
		}
		s.wallets.ClearLowBalanceIfRecovered(w)
		credited = true
		return s.wallets.SaveInTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}

	if expired {
		audit.Emit(ctx, s.audit, audit.Event{
			Type:     "topup.failed",
			WalletID: topup.WalletID,
			Actor:    params.Actor,
			Payload: map[string]any{
				"topup_id": topup.ID.String(),
				"reason":   expiredReason,
			},
		})
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "top-up expired before confirmation").
			WithDetails(map[string]any{"expired_at": topup.ExpiresAt})
	}

	if credited {
		audit.Emit(ctx, s.audit, audit.Event{
			Type:     "topup.confirmed",
			WalletID: topup.WalletID,
			Actor:    params.Actor,
			Payload: map[string]any{
				"topup_id":          topup.ID.String(),
				"amount_cents":      topup.AmountCents,
				"gateway_reference": params.GatewayReference,
			},
		})
	}
	return topup, nil
}

// FailParams marks a pending top-up as failed.
type FailParams struct {
	TopUpID uuid.UUID
	Reason  string
	Actor   string
}

// Fail finalizes a pending top-up without crediting. Failing an already
// failed top-up is a no-op; failing a successful one is a state conflict.
func (s *Service) Fail(ctx context.Context, params FailParams) (*models.TopUp, error) {
	if params.TopUpID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up id is required")
	}
	if params.Reason == "" {
		params.Reason = "gateway failure"
	}

	var topup *models.TopUp
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		topup, err = s.loadTopUp(ctx, repo, params.TopUpID)
		if err != nil {
			return err
		}
		if topup.Status == enums.TopUpStatusFailed {
			return nil
		}
		if topup.Status == enums.TopUpStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "top-up already confirmed")
		}

		topup.Status = enums.TopUpStatusFailed
		topup.FailureReason = &params.Reason
		return repo.Save(ctx, topup)
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.audit, audit.Event{
		Type:     "topup.failed",
		WalletID: topup.WalletID,
		Actor:    params.Actor,
		Payload: map[string]any{
			"topup_id": topup.ID.String(),
			"reason":   params.Reason,
		},
	})
	return topup, nil
}

// ExpireDue fails pending top-ups whose window elapsed without confirmation.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	due, err := s.repo.ListExpiredPending(ctx, now, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing expired top-ups")
	}

	expired := 0
	var errs error
	for _, candidate := range due {
		if _, err := s.Fail(ctx, FailParams{TopUpID: candidate.ID, Reason: expiredReason}); err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeAlreadyFinalized) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
	}
	return expired, errs
}

// AutoTopUp initiates configured top-ups for wallets under their threshold.
// The idempotency key is derived from the wallet and the sweep day, so at
// most one auto top-up fires per wallet per day.
func (s *Service) AutoTopUp(ctx context.Context, now time.Time, batchSize int) (int, error) {
	candidates, err := s.wallets.ListAutoTopUpCandidates(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	initiated := 0
	var errs error
	for _, w := range candidates {
		key := fmt.Sprintf("auto-topup:%s:%s", w.ID, now.UTC().Format("2006-01-02"))
		topup, err := s.Initiate(ctx, InitiateParams{
			WalletID:       w.ID,
			AmountCents:    w.AutoTopUpAmountCents,
			Currency:       w.Currency,
			IdempotencyKey: key,
			Actor:          "system:auto-topup",
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if topup.Status == enums.TopUpStatusSuccess {
			initiated++
		}
	}
	return initiated, errs
}

// Get loads one top-up.
func (s *Service) Get(ctx context.Context, topupID uuid.UUID) (*models.TopUp, error) {
	if topupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up id is required")
	}
	return s.loadTopUp(ctx, s.repo, topupID)
}

func (s *Service) loadTopUp(ctx context.Context, repo Repository, topupID uuid.UUID) (*models.TopUp, error) {
	topup, err := repo.FindByID(ctx, topupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "top-up not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading top-up")
	}
	return topup, nil
}
