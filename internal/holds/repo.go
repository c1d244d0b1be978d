package holds

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// Repository manages persistence for holds. Hold rows are only mutated while
// the owning wallet's row lock is held.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, hold *models.Hold) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Hold, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Hold, error)
	FindActiveByReference(ctx context.Context, walletID uuid.UUID, referenceType, referenceID string) (*models.Hold, error)
	Save(ctx context.Context, hold *models.Hold) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Hold, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a holds repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, hold *models.Hold) error {
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Hold, error) {
	var hold models.Hold
	if err := r.db.WithContext(ctx).First(&hold, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Hold, error) {
	var hold models.Hold
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&hold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) FindActiveByReference(ctx context.Context, walletID uuid.UUID, referenceType, referenceID string) (*models.Hold, error) {
	var hold models.Hold
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND reference_type = ? AND reference_id = ? AND status = ?",
			walletID, referenceType, referenceID, enums.HoldStatusActive).
		First(&hold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) Save(ctx context.Context, hold *models.Hold) error {
	return r.db.WithContext(ctx).Save(hold).Error
}

func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Hold, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Hold
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.HoldStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
