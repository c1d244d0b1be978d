package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

type reconciliationRunner interface {
	Run(ctx context.Context, gateway string, date time.Time) (*models.ReconciliationReport, error)
}

// ReconciliationJobParams configure the daily reconciliation run.
type ReconciliationJobParams struct {
	Logger         *logger.Logger
	Reconciliation reconciliationRunner
	Gateway        string
}

// NewReconciliationJob reconciles yesterday's gateway confirmations against
// the ledger once per worker cycle.
func NewReconciliationJob(params ReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciliation == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	if params.Gateway == "" {
		return nil, fmt.Errorf("gateway name required")
	}
	return &reconciliationJob{
		logg:    params.Logger,
		recon:   params.Reconciliation,
		gateway: params.Gateway,
		now:     time.Now,
	}, nil
}

type reconciliationJob struct {
	logg    *logger.Logger
	recon   reconciliationRunner
	gateway string
	now     func() time.Time

	lastRun time.Time
}

func (j *reconciliationJob) Name() string { return "reconciliation" }

func (j *reconciliationJob) Run(ctx context.Context) error {
	today := j.now().UTC().Truncate(24 * time.Hour)
	if j.lastRun.Equal(today) {
		return nil
	}

	yesterday := today.Add(-24 * time.Hour)
	report, err := j.recon.Run(ctx, j.gateway, yesterday)
	if err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}
	j.lastRun = today

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"report_id":         report.ID.String(),
		"matched":           report.MatchedCount,
		"unmatched_gateway": report.UnmatchedGateway,
		"unmatched_ledger":  report.UnmatchedLedger,
		"discrepancy_cents": report.DiscrepancyCents,
	})
	j.logg.Info(logCtx, "reconciliation run complete")
	return nil
}
