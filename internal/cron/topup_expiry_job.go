package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

type topUpExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// TopUpExpiryJobParams configure the stale-pending top-up sweep.
type TopUpExpiryJobParams struct {
	Logger    *logger.Logger
	TopUps    topUpExpirer
	BatchSize int
}

// NewTopUpExpiryJob fails pending top-ups whose confirmation window elapsed.
func NewTopUpExpiryJob(params TopUpExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TopUps == nil {
		return nil, fmt.Errorf("topups service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 200
	}
	return &topUpExpiryJob{
		logg:   params.Logger,
		topups: params.TopUps,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type topUpExpiryJob struct {
	logg   *logger.Logger
	topups topUpExpirer
	batch  int
	now    func() time.Time
}

func (j *topUpExpiryJob) Name() string { return "topup-expiry" }

func (j *topUpExpiryJob) Run(ctx context.Context) error {
	expired, err := j.topups.ExpireDue(ctx, j.now().UTC(), j.batch)
	logCtx := j.logg.WithField(ctx, "topups_expired", expired)
	if err != nil {
		return fmt.Errorf("topup expiry: %w", err)
	}
	j.logg.Info(logCtx, "topup expiry sweep complete")
	return nil
}
