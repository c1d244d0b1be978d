package refunds

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/internal/audit"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
)

// ServiceParams groups dependencies for the refund service.
type ServiceParams struct {
	DB      db.TxRunner
	Repo    Repository
	Wallets *wallet.Service
	Ledger  *ledger.Service
	Audit   audit.Sink
}

// Service credits money back against prior debits. The sum of refunds per
// original entry is capped at that entry's amount, checked under the wallet
// lock so concurrent refunds cannot overshoot together.
type Service struct {
	dbc     db.TxRunner
	repo    Repository
	wallets *wallet.Service
	ledger  *ledger.Service
	audit   audit.Sink
}

// NewService wires a refund service.
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
	return &Service{
		dbc:     params.DB,
		repo:    params.Repo,
		wallets: params.Wallets,
		ledger:  params.Ledger,
		audit:   params.Audit,
	}, nil
}

// RefundParams describes a refund request against a posted debit.
type RefundParams struct {
	OriginalEntryID uuid.UUID
	AmountCents     int64
	Reason          string
	IdempotencyKey  string
	Actor           string
}

// Refund credits the wallet back. Replaying the same idempotency key returns
// the original refund; a rejected refund persists nothing.
func (s *Service) Refund(ctx context.Context, params RefundParams) (*models.Refund, error) {
	if params.OriginalEntryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "original entry id is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	if params.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, params.IdempotencyKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up refund idempotency key")
	}
	if existing != nil {
		if existing.OriginalEntryID != params.OriginalEntryID || existing.AmountCents != params.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different parameters")
		}
		return existing, nil
	}

	original, err := s.ledger.FindByID(ctx, params.OriginalEntryID)
	if err != nil {
		return nil, err
	}
	if original.Direction != enums.EntryDirectionDebit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only debit entries can be refunded").
			WithDetails(map[string]any{"direction": original.Direction})
	}

	var refund *models.Refund
	err = s.dbc.WithTxRetry(ctx, func(tx *gorm.DB) error {
		refund = nil
		repo := s.repo.WithTx(tx)

		w, err := s.wallets.LockForUpdate(ctx, tx, original.WalletID)
		if err != nil {
			return err
		}
		if !w.Status.CanMutate() {
			return pkgerrors.New(pkgerrors.CodeWalletInactive, "wallet does not accept refunds").
				WithDetails(map[string]any{"status": w.Status})
		}

		// Replay may have landed between the pre-check and the lock.
		prior, err := repo.FindByIdempotencyKey(ctx, params.IdempotencyKey)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "re-checking refund idempotency key")
		}
		if prior != nil {
			refund = prior
			return nil
		}

		refunded, err := repo.SumForOriginalEntry(ctx, original.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing prior refunds")
		}
		if refunded+params.AmountCents > original.AmountCents {
			return pkgerrors.New(pkgerrors.CodeRefundExceedsDebit, "refund exceeds the refundable amount").
				WithDetails(map[string]any{
					"original_cents":         original.AmountCents,
					"already_refunded_cents": refunded,
					"requested_cents":        params.AmountCents,
				})
		}

		refundID := uuid.New()
		entry, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			WalletID:      w.ID,
			Direction:     enums.EntryDirectionCredit,
			AmountCents:   params.AmountCents,
			Type:          enums.TransactionTypeRefund,
			ReferenceType: "refund",
			ReferenceID:   refundID.String(),
			CorrelationID: original.CorrelationID,
		})
		if err != nil {
			return err
		}

		refund = &models.Refund{
			ID:              refundID,
			WalletID:        w.ID,
			OriginalEntryID: original.ID,
			AmountCents:     params.AmountCents,
			Status:          enums.RefundStatusProcessed,
			Reason:          params.Reason,
			IdempotencyKey:  params.IdempotencyKey,
			LedgerEntryID:   entry.ID,
		}
		if err := repo.Create(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating refund")
		}

		w.AvailableCents += params.AmountCents
		w.TotalCreditedCents += params.AmountCents
		if w.AvailableCents != entry.RunningBalanceCents {
			return pkgerrors.New(pkgerrors.CodeLedgerWrite, "running balance diverged from wallet balance")
		}
		s.wallets.ClearLowBalanceIfRecovered(w)
		return s.wallets.SaveInTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.audit, audit.Event{
		Type:     "refund.processed",
		WalletID: refund.WalletID,
		Actor:    params.Actor,
		Payload: map[string]any{
			"refund_id":         refund.ID.String(),
			"original_entry_id": refund.OriginalEntryID.String(),
			"amount_cents":      refund.AmountCents,
		},
	})
	return refund, nil
}

// Get loads one refund.
func (s *Service) Get(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading refund")
	}
	return refund, nil
}

// ListByWallet returns the wallet's most recent refunds.
func (s *Service) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Refund, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	rows, err := s.repo.ListByWallet(ctx, walletID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing refunds")
	}
	return rows, nil
}
