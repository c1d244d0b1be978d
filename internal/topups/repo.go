package topups

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// Repository manages persistence for top-ups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, topup *models.TopUp) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TopUp, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TopUp, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.TopUp, error)
	Save(ctx context.Context, topup *models.TopUp) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.TopUp, error)
	ListConfirmedInWindow(ctx context.Context, gateway string, from, to time.Time) ([]models.TopUp, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a top-up repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, topup *models.TopUp) error {
	return r.db.WithContext(ctx).Create(topup).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TopUp, error) {
	var topup models.TopUp
	if err := r.db.WithContext(ctx).First(&topup, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &topup, nil
}

func (r *repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TopUp, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.TopUp
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.TopUp, error) {
	var topup models.TopUp
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&topup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &topup, nil
}

func (r *repository) Save(ctx context.Context, topup *models.TopUp) error {
	return r.db.WithContext(ctx).Save(topup).Error
}

func (r *repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.TopUp, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.TopUp
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.TopUpStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListConfirmedInWindow(ctx context.Context, gateway string, from, to time.Time) ([]models.TopUp, error) {
	var rows []models.TopUp
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND status = ? AND confirmed_at >= ? AND confirmed_at < ?",
			gateway, enums.TopUpStatusSuccess, from, to).
		Order("confirmed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
