package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

type autoTopUpRunner interface {
	AutoTopUp(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// AutoTopUpJobParams configure the auto top-up sweep.
type AutoTopUpJobParams struct {
	Logger    *logger.Logger
	TopUps    autoTopUpRunner
	BatchSize int
}

// NewAutoTopUpJob initiates configured top-ups for wallets that dropped
// under their low-balance threshold.
func NewAutoTopUpJob(params AutoTopUpJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TopUps == nil {
		return nil, fmt.Errorf("topups service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &autoTopUpJob{
		logg:   params.Logger,
		topups: params.TopUps,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type autoTopUpJob struct {
	logg   *logger.Logger
	topups autoTopUpRunner
	batch  int
	now    func() time.Time
}

func (j *autoTopUpJob) Name() string { return "auto-topup" }

func (j *autoTopUpJob) Run(ctx context.Context) error {
	initiated, err := j.topups.AutoTopUp(ctx, j.now().UTC(), j.batch)
	logCtx := j.logg.WithField(ctx, "topups_initiated", initiated)
	if err != nil {
		return fmt.Errorf("auto topup: %w", err)
	}
	j.logg.Info(logCtx, "auto topup sweep complete")
	return nil
}
