package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/pagination"
)

// Repository manages persistence for ledger entries. Entries are append-only:
// there is no update or delete surface here on purpose.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	LastEntry(ctx context.Context, walletID uuid.UUID) (*models.LedgerEntry, error)
	LastEntryBefore(ctx context.Context, walletID uuid.UUID, at time.Time) (*models.LedgerEntry, error)
	FindReversal(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error)
	FindByReference(ctx context.Context, walletID uuid.UUID, entryType string, referenceType, referenceID string) (*models.LedgerEntry, error)
	List(ctx context.Context, query ListQuery) ([]models.LedgerEntry, *pagination.Cursor, error)
	SumRefundsForEntry(ctx context.Context, originalEntryID uuid.UUID) (int64, error)
	ListCreditsByTypeInWindow(ctx context.Context, entryType string, from, to time.Time) ([]models.LedgerEntry, error)
}

// ListQuery holds filters for a statement page.
type ListQuery struct {
	WalletID uuid.UUID
	Types    []string
	From     *time.Time
	To       *time.Time
	Limit    int
	After    *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) LastEntry(ctx context.Context, walletID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("sequence DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) LastEntryBefore(ctx context.Context, walletID uuid.UUID, at time.Time) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND created_at <= ?", walletID, at).
		Order("sequence DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindReversal(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("reversal_of = ?", entryID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByReference(ctx context.Context, walletID uuid.UUID, entryType string, referenceType, referenceID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND type = ? AND reference_type = ? AND reference_id = ?",
			walletID, entryType, referenceType, referenceID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(query.Limit)

	q := r.db.WithContext(ctx).
		Where("wallet_id = ?", query.WalletID).
		Order("sequence DESC").
		Limit(limit)

	if len(query.Types) > 0 {
		q = q.Where("type IN ?", query.Types)
	}
	if query.From != nil {
		q = q.Where("created_at >= ?", *query.From)
	}
	if query.To != nil {
		q = q.Where("created_at <= ?", *query.To)
	}
	if query.After != nil {
		q = q.Where("sequence < ?", query.After.Sequence)
	}

	var entries []models.LedgerEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	pageSize := pagination.NormalizeLimit(query.Limit)
	if len(entries) <= pageSize {
		return entries, nil, nil
	}
	entries = entries[:pageSize]
	last := entries[len(entries)-1]
	return entries, &pagination.Cursor{Sequence: last.Sequence}, nil
}

func (r *repository) SumRefundsForEntry(ctx context.Context, originalEntryID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("original_entry_id = ?", originalEntryID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) ListCreditsByTypeInWindow(ctx context.Context, entryType string, from, to time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("type = ? AND direction = ? AND created_at >= ? AND created_at < ?",
			entryType, "credit", from, to).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
