package reconciliation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
)

// Repository persists reconciliation reports.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, report *models.ReconciliationReport) error
	ListByGateway(ctx context.Context, gateway string, limit int) ([]models.ReconciliationReport, error)
	FindForDate(ctx context.Context, gateway string, date time.Time) (*models.ReconciliationReport, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, report *models.ReconciliationReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) ListByGateway(ctx context.Context, gateway string, limit int) ([]models.ReconciliationReport, error) {
	if limit <= 0 {
		limit = 30
	}
	var rows []models.ReconciliationReport
	err := r.db.WithContext(ctx).
		Where("gateway = ?", gateway).
		Order("report_date DESC, created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindForDate(ctx context.Context, gateway string, date time.Time) (*models.ReconciliationReport, error) {
	var report models.ReconciliationReport
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND report_date = ?", gateway, date.Format("2006-01-02")).
		Order("created_at DESC").
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}
