package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

type holdExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// HoldExpiryJobParams configure the expired-hold sweep.
type HoldExpiryJobParams struct {
	Logger    *logger.Logger
	Holds     holdExpirer
	BatchSize int
}

// NewHoldExpiryJob releases active holds past their expiry, returning the
// reserved funds to the effective balance.
func NewHoldExpiryJob(params HoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("holds service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 200
	}
	return &holdExpiryJob{
		logg:  params.Logger,
		holds: params.Holds,
		batch: batch,
		now:   time.Now,
	}, nil
}

type holdExpiryJob struct {
	logg  *logger.Logger
	holds holdExpirer
	batch int
	now   func() time.Time
}

func (j *holdExpiryJob) Name() string { return "hold-expiry" }

func (j *holdExpiryJob) Run(ctx context.Context) error {
	expired, err := j.holds.ExpireDue(ctx, j.now().UTC(), j.batch)
	logCtx := j.logg.WithField(ctx, "holds_expired", expired)
	if err != nil {
		return fmt.Errorf("hold expiry: %w", err)
	}
	j.logg.Info(logCtx, "hold expiry sweep complete")
	return nil
}
