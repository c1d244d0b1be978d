package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/internal/audit"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/notifications"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
)

// ServiceParams groups dependencies for the wallet service.
type ServiceParams struct {
	DB            db.TxRunner
	Repo          Repository
	Ledger        *ledger.Service
	Notifications *notifications.Service
	Audit         audit.Sink
}

// Service owns wallet lifecycle and direct balance mutations. Every mutation
// locks the wallet row first; the ledger append and the balance update share
// that transaction.
type Service struct {
	dbc           db.TxRunner
	repo          Repository
	ledger        *ledger.Service
	notifications *notifications.Service
	audit         audit.Sink
}

// NewService wires a wallet service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Notifications == nil {
		return nil, errors.New("notifications service is required")
	}
	return &Service{
		dbc:           params.DB,
		repo:          params.Repo,
		ledger:        params.Ledger,
		notifications: params.Notifications,
		audit:         params.Audit,
	}, nil
}

// GetOrCreateParams identifies the wallet to provision.
type GetOrCreateParams struct {
	AccountID                uuid.UUID
	Currency                 enums.Currency
	LowBalanceThresholdCents int64
}

// GetOrCreate returns the wallet for (account, currency), creating it when
// absent. Creation races resolve through the unique index: the loser re-reads.
func (s *Service) GetOrCreate(ctx context.Context, params GetOrCreateParams) (*models.Wallet, error) {
	if params.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !params.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if params.LowBalanceThresholdCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low balance threshold must not be negative")
	}

	existing, err := s.repo.FindByAccountCurrency(ctx, params.AccountID, params.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up wallet")
	}
	if existing != nil {
		return existing, nil
	}

	wallet := &models.Wallet{
		AccountID:                params.AccountID,
		Currency:                 params.Currency,
		Status:                   enums.WalletStatusActive,
		LowBalanceThresholdCents: params.LowBalanceThresholdCents,
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		if db.IsUniqueViolation(err, "uq_wallets_account_currency") {
			again, findErr := s.repo.FindByAccountCurrency(ctx, params.AccountID, params.Currency)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "re-reading wallet after create race")
			}
			if again != nil {
				return again, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating wallet")
	}

	audit.Emit(ctx, s.audit, audit.Event{
		Type:     "wallet.created",
		WalletID: wallet.ID,
		Payload: map[string]any{
			"account_id": params.AccountID.String(),
			"currency":   string(params.Currency),
		},
	})
	return wallet, nil
}

// Get loads a wallet by id.
func (s *Service) Get(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	wallet, err := s.repo.FindByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading wallet")
	}
	return wallet, nil
}

// Balance is the snapshot returned by GetBalance.
type Balance struct {
	WalletID       uuid.UUID
	Currency       enums.Currency
	AvailableCents int64
	ReservedCents  int64
	EffectiveCents int64
	Status         enums.WalletStatus
}

// GetBalance returns the wallet's current balance snapshot.
func (s *Service) GetBalance(ctx context.Context, walletID uuid.UUID) (*Balance, error) {
	wallet, err := s.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return &Balance{
		WalletID:       wallet.ID,
		Currency:       wallet.Currency,
		AvailableCents: wallet.AvailableCents,
		ReservedCents:  wallet.ReservedCents,
		EffectiveCents: wallet.EffectiveCents(),
		Status:         wallet.Status,
	}, nil
}

// DirectDebitParams describes an immediate charge against the wallet.
type DirectDebitParams struct {
	WalletID      uuid.UUID
	AmountCents   int64
	Currency      enums.Currency
	ReferenceType string
	ReferenceID   string
	CorrelationID string
	Actor         string
}

// DirectDebit charges the wallet in one transaction: lock, funds check,
// balance update, ledger append. A repeat of the same reference returns the
// original entry unchanged.
func (s *Service) DirectDebit(ctx context.Context, params DirectDebitParams) (*models.LedgerEntry, error) {
	if params.WalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.ReferenceType == "" || params.ReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if params.CorrelationID == "" {
		params.CorrelationID = uuid.NewString()
	}

	var entry *models.LedgerEntry
	var pendingNotification *models.Notification

	err := s.dbc.WithTxRetry(ctx, func(tx *gorm.DB) error {
		entry = nil
		pendingNotification = nil

		wallet, err := s.lockWallet(ctx, tx, params.WalletID)
		if err != nil {
			return err
		}
		if !wallet.Status.CanMutate() {
			return pkgerrors.New(pkgerrors.CodeWalletInactive, "wallet does not accept debits").
				WithDetails(map[string]any{"status": wallet.Status})
		}
		if params.Currency != "" && params.Currency != wallet.Currency {
			return pkgerrors.New(pkgerrors.CodeCurrencyMismatch, "currency does not match the wallet").
				WithDetails(map[string]any{"wallet_currency": wallet.Currency, "requested": params.Currency})
		}

		existing, err := s.ledger.FindByReference(ctx, tx, wallet.ID, enums.TransactionTypeDebit, params.ReferenceType, params.ReferenceID)
		if err != nil {
			return err
		}
		if existing != nil {
			entry = existing
			return nil
		}

		if wallet.EffectiveCents() < params.AmountCents {
			return insufficientBalance(wallet, params.AmountCents)
		}

		entry, err = s.ledger.Append(ctx, tx, ledger.AppendInput{
			WalletID:      wallet.ID,
			Direction:     enums.EntryDirectionDebit,
			AmountCents:   params.AmountCents,
			Type:          enums.TransactionTypeDebit,
			ReferenceType: params.ReferenceType,
			ReferenceID:   params.ReferenceID,
			CorrelationID: params.CorrelationID,
		})
		if err != nil {
			return err
		}

		wallet.AvailableCents -= params.AmountCents
		wallet.TotalDebitedCents += params.AmountCents
		if wallet.AvailableCents != entry.RunningBalanceCents {
			return pkgerrors.New(pkgerrors.CodeLedgerWrite, "running balance diverged from wallet balance")
		}

		pendingNotification, err = s.maybeRecordLowBalance(ctx, tx, wallet)
		if err != nil {
			return err
		}
		return s.repo.WithTx(tx).Save(ctx, wallet)
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Dispatch(ctx, pendingNotification)
	audit.Emit(ctx, s.audit, audit.Event{
		Type:          "wallet.debited",
		WalletID:      params.WalletID,
		Actor:         params.Actor,
		CorrelationID: params.CorrelationID,
		Payload: map[string]any{
			"amount_cents":   params.AmountCents,
			"reference_type": params.ReferenceType,
			"reference_id":   params.ReferenceID,
		},
	})
	return entry, nil
}

// SetStatusParams drives the freeze/unfreeze/close transitions.
type SetStatusParams struct {
	WalletID uuid.UUID
	Actor    string
}

// Freeze suspends all balance mutations.
func (s *Service) Freeze(ctx context.Context, params SetStatusParams) (*models.Wallet, error) {
	return s.transition(ctx, params, enums.WalletStatusFrozen)
}

// Unfreeze restores a frozen wallet to active.
func (s *Service) Unfreeze(ctx context.Context, params SetStatusParams) (*models.Wallet, error) {
	return s.transition(ctx, params, enums.WalletStatusActive)
}

// Close permanently retires the wallet. Requires no reserved funds.
func (s *Service) Close(ctx context.Context, params SetStatusParams) (*models.Wallet, error) {
	return s.transition(ctx, params, enums.WalletStatusClosed)
}

func (s *Service) transition(ctx context.Context, params SetStatusParams, target enums.WalletStatus) (*models.Wallet, error) {
	if params.WalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}

	var wallet *models.Wallet
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		wallet, err = s.lockWallet(ctx, tx, params.WalletID)
		if err != nil {
			return err
		}
		if wallet.Status == enums.WalletStatusClosed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is closed")
		}
		if wallet.Status == target {
			return nil
		}
		if target == enums.WalletStatusClosed && wallet.ReservedCents > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "wallet has reserved funds").
				WithDetails(map[string]any{"reserved_cents": wallet.ReservedCents})
		}
		if target == enums.WalletStatusActive && wallet.Status != enums.WalletStatusFrozen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only frozen wallets can be unfrozen")
		}
		wallet.Status = target
		return s.repo.WithTx(tx).Save(ctx, wallet)
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.audit, audit.Event{
		Type:     "wallet.status_changed",
		WalletID: wallet.ID,
		Actor:    params.Actor,
		Payload:  map[string]any{"status": string(wallet.Status)},
	})
	return wallet, nil
}

// ReverseEntryParams identifies a posted entry to correct.
type ReverseEntryParams struct {
	EntryID       uuid.UUID
	CorrelationID string
	Actor         string
}

// ReverseEntry appends the opposite entry and moves the balance back. A
// reversal that would take the available balance negative is rejected.
func (s *Service) ReverseEntry(ctx context.Context, params ReverseEntryParams) (*models.LedgerEntry, error) {
	if params.EntryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	if params.CorrelationID == "" {
		params.CorrelationID = uuid.NewString()
	}

	original, err := s.ledger.FindByID(ctx, params.EntryID)
	if err != nil {
		return nil, err
	}

	var reversal *models.LedgerEntry
	err = s.dbc.WithTxRetry(ctx, func(tx *gorm.DB) error {
		wallet, err := s.lockWallet(ctx, tx, original.WalletID)
		if err != nil {
			return err
		}
		if wallet.Status == enums.WalletStatusClosed {
			return pkgerrors.New(pkgerrors.CodeWalletInactive, "wallet is closed")
		}

		// Reversing a credit removes funds; the wallet must still cover it.
		if original.Direction == enums.EntryDirectionCredit && wallet.EffectiveCents() < original.AmountCents {
			return insufficientBalance(wallet, original.AmountCents)
		}

		reversal, err = s.ledger.Reverse(ctx, tx, params.EntryID, params.CorrelationID)
		if err != nil {
			return err
		}

		wallet.AvailableCents += reversal.SignedCents()
		if reversal.Direction == enums.EntryDirectionCredit {
			wallet.TotalCreditedCents += reversal.AmountCents
		} else {
			wallet.TotalDebitedCents += reversal.AmountCents
		}
		if wallet.AvailableCents != reversal.RunningBalanceCents {
			return pkgerrors.New(pkgerrors.CodeLedgerWrite, "running balance diverged from wallet balance")
		}
		return s.repo.WithTx(tx).Save(ctx, wallet)
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.audit, audit.Event{
		Type:          "ledger.reversed",
		WalletID:      original.WalletID,
		Actor:         params.Actor,
		CorrelationID: params.CorrelationID,
		Payload: map[string]any{
			"original_entry_id": original.ID.String(),
			"reversal_entry_id": reversal.ID.String(),
		},
	})
	return reversal, nil
}

// ListAutoTopUpCandidates returns active wallets under their threshold with
// auto top-up configured. Used by the sweep worker.
func (s *Service) ListAutoTopUpCandidates(ctx context.Context, limit int) ([]models.Wallet, error) {
	wallets, err := s.repo.ListAutoTopUpCandidates(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing auto top-up candidates")
	}
	return wallets, nil
}

// LockForUpdate takes the wallet row lock inside the caller's transaction.
// Hold, top-up, and refund flows funnel through this so all balance
// mutations serialize on the same lock.
func (s *Service) LockForUpdate(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) (*models.Wallet, error) {
	return s.lockWallet(ctx, tx, walletID)
}

// SaveInTx persists the locked wallet inside the caller's transaction.
func (s *Service) SaveInTx(ctx context.Context, tx *gorm.DB, wallet *models.Wallet) error {
	return s.repo.WithTx(tx).Save(ctx, wallet)
}

// RecordLowBalanceIfCrossed flags the wallet and records a notification row
// when the effective balance first drops under the threshold. Returns the row
// to dispatch after commit, or nil.
func (s *Service) RecordLowBalanceIfCrossed(ctx context.Context, tx *gorm.DB, wallet *models.Wallet) (*models.Notification, error) {
	return s.maybeRecordLowBalance(ctx, tx, wallet)
}

// ClearLowBalanceIfRecovered re-arms the low-balance alert once the wallet is
// back above its threshold.
func (s *Service) ClearLowBalanceIfRecovered(wallet *models.Wallet) {
	if wallet.LowBalanceNotified && !wallet.BelowThreshold() {
		wallet.LowBalanceNotified = false
	}
}

// DispatchNotification delivers a recorded low-balance alert after commit.
func (s *Service) DispatchNotification(ctx context.Context, notification *models.Notification) {
	s.notifications.Dispatch(ctx, notification)
}

func (s *Service) lockWallet(ctx context.Context, tx *gorm.DB, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.WithTx(tx).FindForUpdate(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking wallet")
	}
	return wallet, nil
}

func (s *Service) maybeRecordLowBalance(ctx context.Context, tx *gorm.DB, wallet *models.Wallet) (*models.Notification, error) {
	if !wallet.BelowThreshold() || wallet.LowBalanceNotified {
		return nil, nil
	}
	wallet.LowBalanceNotified = true
	return s.notifications.RecordCrossing(ctx, tx, wallet)
}

// InsufficientBalance builds the rejection for a charge the effective
// balance cannot cover.
func InsufficientBalance(wallet *models.Wallet, requested int64) error {
	return insufficientBalance(wallet, requested)
}

func insufficientBalance(wallet *models.Wallet, requested int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance").
		WithDetails(map[string]any{
			"available_cents": wallet.AvailableCents,
			"reserved_cents":  wallet.ReservedCents,
			"effective_cents": wallet.EffectiveCents(),
			"requested_cents": requested,
		})
}
