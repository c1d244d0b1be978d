package holds

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/internal/audit"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

// ServiceParams groups dependencies for the holds service.
type ServiceParams struct {
	DB         db.TxRunner
	Repo       Repository
	Wallets    *wallet.Service
	Ledger     *ledger.Service
	Audit      audit.Sink
	Logg       *logger.Logger
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// Service manages fund reservations. Creating a hold raises the wallet's
// reserved counter only; the ledger entry appears at capture, never before.
type Service struct {
	dbc        db.TxRunner
	repo       Repository
	wallets    *wallet.Service
	ledger     *ledger.Service
	audit      audit.Sink
	logg       *logger.Logger
	defaultTTL time.Duration
	maxTTL     time.Duration
}

// NewService wires a holds service.
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
	if params.DefaultTTL <= 0 {
		params.DefaultTTL = time.Hour
	}
	if params.MaxTTL <= 0 {
		params.MaxTTL = 24 * time.Hour
	}
	return &Service{
		dbc:        params.DB,
		repo:       params.Repo,
		wallets:    params.Wallets,
		ledger:     params.Ledger,
		audit:      params.Audit,
		logg:       params.Logg,
		defaultTTL: params.DefaultTTL,
		maxTTL:     params.MaxTTL,
	}, nil
}

// CreateParams describes a new reservation.
type CreateParams struct {
	WalletID       uuid.UUID
	AmountCents    int64
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey string
	TTL            time.Duration
	Actor          string
}

// Create reserves funds against the wallet's effective balance. Replaying the
// same idempotency key returns the original hold; a second active hold for
// the same reference is rejected.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Hold, error) {
	if params.WalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.ReferenceType == "" || params.ReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if params.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold ttl exceeds maximum").
			WithDetails(map[string]any{"max_ttl": s.maxTTL.String()})
	}

	var hold *models.Hold
	created := false

	err := s.dbc.WithTxRetry(ctx, func(tx *gorm.DB) error {
		hold = nil
		created = false
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByIdempotencyKey(ctx, params.IdempotencyKey)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up hold idempotency key")
		}
		if existing != nil {
			if existing.WalletID != params.WalletID || existing.AmountCents != params.AmountCents {
				return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different parameters")
			}
			hold = existing
			return nil
		}

		w, err := s.wallets.LockForUpdate(ctx, tx, params.WalletID)
		if err != nil {
			return err
		}
		if !w.Status.CanMutate() {
			return pkgerrors.New(pkgerrors.CodeWalletInactive, "wallet does not accept holds").
				WithDetails(map[string]any{"status": w.Status})
		}

		conflicting, err := repo.FindActiveByReference(ctx, w.ID, params.ReferenceType, params.ReferenceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up active hold")
		}
		if conflicting != nil {
			return pkgerrors.New(pkgerrors.CodeHoldExists, "an active hold already exists for this reference").
				WithDetails(map[string]any{"hold_id": conflicting.ID})
		}

		if w.EffectiveCents() < params.AmountCents {
			return wallet.InsufficientBalance(w, params.AmountCents)
		}

		hold = &models.Hold{
			WalletID:       w.ID,
			ReferenceType:  params.ReferenceType,
			ReferenceID:    params.ReferenceID,
			AmountCents:    params.AmountCents,
			Status:         enums.HoldStatusActive,
			IdempotencyKey: params.IdempotencyKey,
			ExpiresAt:      time.Now().UTC().Add(ttl),
		}
		if err := repo.Create(ctx, hold); err != nil {
			if db.IsUniqueViolation(err, "uq_holds_active_reference") {
				return pkgerrors.New(pkgerrors.CodeHoldExists, "an active hold already exists for this reference")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating hold")
		}

		w.ReservedCents += params.AmountCents
		created = true
		return s.wallets.SaveInTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}

	if created {
		audit.Emit(ctx, s.audit, audit.Event{
			Type:     "hold.created",
			WalletID: hold.WalletID,
			Actor:    params.Actor,
			Payload: map[string]any{
				"hold_id":        hold.ID.String(),
				"amount_cents":   hold.AmountCents,
				"reference_type": hold.ReferenceType,
				"reference_id":   hold.ReferenceID,
				"expires_at":     hold.ExpiresAt,
			},
		})
	}
	return hold, nil
}

// CaptureParams finalizes a hold into a realized debit.
type CaptureParams struct {
	HoldID        uuid.UUID
	AmountCents   int64 // zero captures the full hold amount
	CorrelationID string
	Actor         string
}

// Capture converts the reservation into a ledger debit. Partial captures
// release the remainder.
func (s *Service) Capture(ctx context.Context, params CaptureParams) (*models.LedgerEntry, error) {
	if params.HoldID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold id is required")
	}
	if params.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capture amount must not be negative")
	}
	if params.CorrelationID == "" {
		params.CorrelationID = uuid.NewString()
	}

	var entry *models.LedgerEntry
	var hold *models.Hold
	var pendingNotification *models.Notification

	err := s.dbc.WithTxRetry(ctx, func(tx *gorm.DB) error {
		entry = nil
		pendingNotification = nil
		repo := s.repo.WithTx(tx)

		var err error
		hold, err = s.loadHold(ctx, repo, params.HoldID)
		if err != nil {
			return err
		}

		w, err := s.wallets.LockForUpdate(ctx, tx, hold.WalletID)
		if err != nil {
			return err
		}

		// Re-read under the wallet lock; the sweep may have expired it.
		hold, err = s.loadHold(ctx, repo, params.HoldID)
		if err != nil {
			return err
		}
		if hold.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "hold already finalized").
				WithDetails(map[string]any{"status": hold.Status})
		}

		amount := params.AmountCents
		if amount == 0 {
			amount = hold.AmountCents
		}
		if amount > hold.AmountCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "capture exceeds the hold amount").
				WithDetails(map[string]any{"hold_cents": hold.AmountCents, "requested_cents": amount})
		}

		entry, err = s.ledger.Append(ctx, tx, ledger.AppendInput{
			WalletID:      w.ID,
			Direction:     enums.EntryDirectionDebit,
			AmountCents:   amount,
			Type:          enums.TransactionTypeHoldCapture,
			ReferenceType: "hold",
			ReferenceID:   hold.ID.String(),
			CorrelationID: params.CorrelationID,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		hold.Status = enums.HoldStatusCaptured
		hold.CapturedAt = &now
		if err := repo.Save(ctx, hold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalizing hold")
		}

		w.ReservedCents -= hold.AmountCents
		w.AvailableCents -= amount
		w.TotalDebitedCents += amount
		if w.AvailableCents != entry.RunningBalanceCents {
			return pkgerrors.New(pkgerrors.CodeLedgerWrite, "running balance diverged from wallet balance")
		}

		pendingNotification, err = s.wallets.RecordLowBalanceIfCrossed(ctx, tx, w)
		if err != nil {
			return err
		}
		return s.wallets.SaveInTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}

	s.wallets.DispatchNotification(ctx, pendingNotification)
	audit.Emit(ctx, s.audit, audit.Event{
		Type:          "hold.captured",
		WalletID:      hold.WalletID,
		Actor:         params.Actor,
		CorrelationID: params.CorrelationID,
		Payload: map[string]any{
			"hold_id":         hold.ID.String(),
			"ledger_entry_id": entry.ID.String(),
			"amount_cents":    entry.AmountCents,
		},
	})
	return entry, nil
}

// ReleaseParams frees a reservation without charging.
type ReleaseParams struct {
	HoldID uuid.UUID
	Actor  string
}

// Release returns the reserved funds to the effective balance. No ledger
// entry is written; the funds never left the wallet.
func (s *Service) Release(ctx context.Context, params ReleaseParams) (*models.Hold, error) {
	if params.HoldID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold id is required")
	}

	hold, err := s.finalizeWithoutCharge(ctx, params.HoldID, enums.HoldStatusReleased)
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.audit, audit.Event{
		Type:     "hold.released",
		WalletID: hold.WalletID,
		Actor:    params.Actor,
		Payload:  map[string]any{"hold_id": hold.ID.String(), "amount_cents": hold.AmountCents},
	})
	return hold, nil
}

// ExpireDue sweeps active holds past their expiry, releasing each one. Per-
// hold failures are collected so one bad row cannot stall the sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	due, err := s.repo.ListExpired(ctx, now, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing expired holds")
	}

	expired := 0
	var errs error
	for _, candidate := range due {
		hold, err := s.finalizeWithoutCharge(ctx, candidate.ID, enums.HoldStatusExpired)
		if err != nil {
			// Raced with a capture or release; not a sweep failure.
			if pkgerrors.Is(err, pkgerrors.CodeAlreadyFinalized) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
		audit.Emit(ctx, s.audit, audit.Event{
			Type:     "hold.expired",
			WalletID: hold.WalletID,
			Payload:  map[string]any{"hold_id": hold.ID.String(), "amount_cents": hold.AmountCents},
		})
	}
	return expired, errs
}

// Get loads one hold.
func (s *Service) Get(ctx context.Context, holdID uuid.UUID) (*models.Hold, error) {
	if holdID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold id is required")
	}
	return s.loadHold(ctx, s.repo, holdID)
}

func (s *Service) finalizeWithoutCharge(ctx context.Context, holdID uuid.UUID, target enums.HoldStatus) (*models.Hold, error) {
	var hold *models.Hold
	err := s.dbc.WithTxRetry(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		hold, err = s.loadHold(ctx, repo, holdID)
		if err != nil {
			return err
		}

		w, err := s.wallets.LockForUpdate(ctx, tx, hold.WalletID)
		if err != nil {
			return err
		}

		hold, err = s.loadHold(ctx, repo, holdID)
		if err != nil {
			return err
		}
		if hold.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "hold already finalized").
				WithDetails(map[string]any{"status": hold.Status})
		}

		now := time.Now().UTC()
		hold.Status = target
		hold.ReleasedAt = &now
		if err := repo.Save(ctx, hold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalizing hold")
		}

		w.ReservedCents -= hold.AmountCents
		return s.wallets.SaveInTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *Service) loadHold(ctx context.Context, repo Repository, holdID uuid.UUID) (*models.Hold, error) {
	hold, err := repo.FindByID(ctx, holdID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "hold not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading hold")
	}
	return hold, nil
}
