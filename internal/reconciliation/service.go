package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/topups"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	Repo   Repository
	TopUps topups.Repository
	Ledger ledger.Repository
	Logg   *logger.Logger
}

// Service compares gateway-confirmed top-ups against the ledger's topup
// credits for a day. It is strictly read-only over financial data: it writes
// a report and never corrects anything itself.
type Service struct {
	repo   Repository
	topups topups.Repository
	ledger ledger.Repository
	logg   *logger.Logger
}

// NewService wires a reconciliation service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.TopUps == nil {
		return nil, errors.New("topups repository is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger repository is required")
	}
	return &Service{
		repo:   params.Repo,
		topups: params.TopUps,
		ledger: params.Ledger,
		logg:   params.Logg,
	}, nil
}

// Run builds and persists the report for (gateway, date). The date is taken
// as a UTC calendar day.
func (s *Service) Run(ctx context.Context, gateway string, date time.Time) (*models.ReconciliationReport, error) {
	if gateway == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway is required")
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	confirmed, err := s.topups.ListConfirmedInWindow(ctx, gateway, dayStart, dayEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing confirmed top-ups")
	}
	credits, err := s.ledger.ListCreditsByTypeInWindow(ctx, string(enums.TransactionTypeTopUp), dayStart, dayEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing topup ledger credits")
	}
	credits, err = s.scopeCreditsToGateway(ctx, gateway, credits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving credit gateways")
	}

	creditsByTopUp := make(map[string]models.LedgerEntry, len(credits))
	for _, entry := range credits {
		creditsByTopUp[entry.ReferenceID] = entry
	}

	report := &models.ReconciliationReport{
		Gateway:      gateway,
		ReportDate:   dayStart,
		GatewayCount: len(confirmed),
		LedgerCount:  len(credits),
	}

	matchedCredits := make(map[string]bool, len(confirmed))
	for _, topup := range confirmed {
		report.GatewayTotalCents += topup.AmountCents
		entry, ok := creditsByTopUp[topup.ID.String()]
		if !ok {
			report.UnmatchedGateway++
			report.Anomalies = append(report.Anomalies,
				fmt.Sprintf("topup %s confirmed for %d cents has no ledger credit", topup.ID, topup.AmountCents))
			continue
		}
		matchedCredits[topup.ID.String()] = true
		if entry.AmountCents != topup.AmountCents {
			report.Anomalies = append(report.Anomalies,
				fmt.Sprintf("topup %s amount mismatch: gateway %d cents, ledger %d cents",
					topup.ID, topup.AmountCents, entry.AmountCents))
		}
		report.MatchedCount++
	}

	for _, entry := range credits {
		report.LedgerTotalCents += entry.AmountCents
		if !matchedCredits[entry.ReferenceID] {
			report.UnmatchedLedger++
			report.Anomalies = append(report.Anomalies,
				fmt.Sprintf("ledger credit %s for %d cents has no confirmed topup", entry.ID, entry.AmountCents))
		}
	}

	report.DiscrepancyCents = report.GatewayTotalCents - report.LedgerTotalCents

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting reconciliation report")
	}

	if s.logg != nil && len(report.Anomalies) > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"gateway":           gateway,
			"report_date":       dayStart.Format("2006-01-02"),
			"anomalies":         len(report.Anomalies),
			"discrepancy_cents": report.DiscrepancyCents,
		})
		s.logg.Warn(logCtx, "reconciliation found discrepancies")
	}
	return report, nil
}

// scopeCreditsToGateway drops credits whose referenced top-up belongs to a
// different provider. Ledger entries do not record the gateway themselves, so
// without this a run for one provider would report the other provider's
// credits as unmatched. Credits referencing no top-up row at all stay in: an
// orphaned credit is exactly the anomaly the report exists to surface.
func (s *Service) scopeCreditsToGateway(ctx context.Context, gateway string, credits []models.LedgerEntry) ([]models.LedgerEntry, error) {
	ids := make([]uuid.UUID, 0, len(credits))
	for _, entry := range credits {
		if id, err := uuid.Parse(entry.ReferenceID); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return credits, nil
	}

	rows, err := s.topups.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	gatewayByID := make(map[string]string, len(rows))
	for _, row := range rows {
		gatewayByID[row.ID.String()] = row.Gateway
	}

	scoped := make([]models.LedgerEntry, 0, len(credits))
	for _, entry := range credits {
		if owner, ok := gatewayByID[entry.ReferenceID]; ok && owner != gateway {
			continue
		}
		scoped = append(scoped, entry)
	}
	return scoped, nil
}

// ListReports returns recent reports for a gateway.
func (s *Service) ListReports(ctx context.Context, gateway string, limit int) ([]models.ReconciliationReport, error) {
	if gateway == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway is required")
	}
	rows, err := s.repo.ListByGateway(ctx, gateway, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing reconciliation reports")
	}
	return rows, nil
}
