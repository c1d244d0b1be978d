package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// Repository manages persistence for wallets. FindForUpdate takes the
// per-wallet row lock every balance mutation serializes on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindByAccountCurrency(ctx context.Context, accountID uuid.UUID, currency enums.Currency) (*models.Wallet, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error
	ListAutoTopUpCandidates(ctx context.Context, limit int) ([]models.Wallet, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByAccountCurrency(ctx context.Context, accountID uuid.UUID, currency enums.Currency) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND currency = ?", accountID, currency).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	query := r.db.WithContext(ctx)
	// sqlite has no row locks; its single-writer transaction covers the
	// same invariant in tests.
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var wallet models.Wallet
	if err := query.First(&wallet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) Save(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repository) ListAutoTopUpCandidates(ctx context.Context, limit int) ([]models.Wallet, error) {
	if limit <= 0 {
		limit = 100
	}
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.WalletStatusActive).
		Where("auto_topup_enabled = ?", true).
		Where("auto_topup_amount_cents > 0").
		Where("low_balance_threshold_cents > 0").
		Where("available_cents - reserved_cents < low_balance_threshold_cents").
		Order("updated_at ASC").
		Limit(limit).
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}
