package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/pagination"
)

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo Repository
}

// Service owns the append-only ledger. Append and Reverse must run inside the
// caller's transaction while the wallet row is locked; sequence assignment
// relies on that lock for gaplessness.
type Service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// AppendInput captures the immutable data a ledger entry requires.
type AppendInput struct {
	WalletID      uuid.UUID
	Direction     enums.EntryDirection
	AmountCents   int64
	Type          enums.TransactionType
	ReferenceType string
	ReferenceID   string
	ReversalOf    *uuid.UUID
	CorrelationID string
}

// Append writes the next entry for the wallet: sequence is the predecessor's
// plus one and the running balance carries forward. tx must hold the wallet
// row lock.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error) {
	if input.WalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entry direction")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	if input.ReferenceType == "" || input.ReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if input.CorrelationID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "correlation id is required")
	}

	repo := s.repo.WithTx(tx)

	last, err := repo.LastEntry(ctx, input.WalletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeLedgerWrite, err, "reading ledger head")
	}

	var sequence int64 = 1
	var running int64
	if last != nil {
		sequence = last.Sequence + 1
		running = last.RunningBalanceCents
	}
	running += input.Direction.Signed(input.AmountCents)
	if running < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeLedgerWrite, "running balance would go negative")
	}

	entry := &models.LedgerEntry{
		WalletID:            input.WalletID,
		Sequence:            sequence,
		Direction:           input.Direction,
		AmountCents:         input.AmountCents,
		RunningBalanceCents: running,
		Type:                input.Type,
		ReferenceType:       input.ReferenceType,
		ReferenceID:         input.ReferenceID,
		ReversalOf:          input.ReversalOf,
		CorrelationID:       input.CorrelationID,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeLedgerWrite, err, "appending ledger entry")
	}
	return entry, nil
}

// Reverse appends the opposite-direction correction for an existing entry.
// Each entry may be reversed at most once. tx must hold the wallet row lock.
func (s *Service) Reverse(ctx context.Context, tx *gorm.DB, entryID uuid.UUID, correlationID string) (*models.LedgerEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}

	repo := s.repo.WithTx(tx)

	original, err := repo.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ledger entry")
	}
	if original.Type == enums.TransactionTypeReversal {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reversal entries cannot be reversed")
	}

	existing, err := repo.FindReversal(ctx, entryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking prior reversal")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "entry already reversed").
			WithDetails(map[string]any{"reversal_entry_id": existing.ID})
	}

	return s.Append(ctx, tx, AppendInput{
		WalletID:      original.WalletID,
		Direction:     original.Direction.Opposite(),
		AmountCents:   original.AmountCents,
		Type:          enums.TransactionTypeReversal,
		ReferenceType: "ledger_entry",
		ReferenceID:   original.ID.String(),
		ReversalOf:    &original.ID,
		CorrelationID: correlationID,
	})
}

// FindByReference looks up an entry by its business reference inside the
// caller's transaction. Used for idempotent replay of reference-keyed debits.
func (s *Service) FindByReference(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, entryType enums.TransactionType, referenceType, referenceID string) (*models.LedgerEntry, error) {
	entry, err := s.repo.WithTx(tx).FindByReference(ctx, walletID, string(entryType), referenceType, referenceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up ledger reference")
	}
	return entry, nil
}

// FindByID loads one entry.
func (s *Service) FindByID(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading ledger entry")
	}
	return entry, nil
}

// StatementParams holds statement query inputs from the API layer.
type StatementParams struct {
	WalletID uuid.UUID
	Types    []enums.TransactionType
	From     *time.Time
	To       *time.Time
	Limit    int
	Cursor   string
}

// StatementResult is one page of entries newest-first plus the next cursor.
type StatementResult struct {
	Items  []models.LedgerEntry
	Cursor string
}

// Statement returns a cursor-paginated page of the wallet's ledger.
func (s *Service) Statement(ctx context.Context, params StatementParams) (*StatementResult, error) {
	if params.WalletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "statement window is inverted")
	}

	types := make([]string, 0, len(params.Types))
	for _, t := range params.Types {
		if !t.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type filter")
		}
		types = append(types, string(t))
	}

	entries, next, err := s.repo.List(ctx, ListQuery{
		WalletID: params.WalletID,
		Types:    types,
		From:     params.From,
		To:       params.To,
		Limit:    params.Limit,
		After:    after,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing ledger entries")
	}

	result := &StatementResult{Items: entries}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// BalanceAt returns the wallet's available balance as of the given instant:
// the running balance of the last entry at or before it, zero when the prefix
// is empty.
func (s *Service) BalanceAt(ctx context.Context, walletID uuid.UUID, at time.Time) (int64, error) {
	if walletID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	entry, err := s.repo.LastEntryBefore(ctx, walletID, at)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading balance history")
	}
	if entry == nil {
		return 0, nil
	}
	return entry.RunningBalanceCents, nil
}
