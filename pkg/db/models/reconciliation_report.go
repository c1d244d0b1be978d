package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ReconciliationReport is a point-in-time snapshot comparing successful
// top-ups for a (date, gateway) pair against the matching topup credit
// ledger entries. Created once per run, immutable afterward.
type ReconciliationReport struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Gateway           string         `gorm:"column:gateway;not null;index:idx_recon_reports_gateway_date"`
	ReportDate        time.Time      `gorm:"column:report_date;type:date;not null;index:idx_recon_reports_gateway_date"`
	GatewayCount      int            `gorm:"column:gateway_count;not null"`
	LedgerCount       int            `gorm:"column:ledger_count;not null"`
	MatchedCount      int            `gorm:"column:matched_count;not null"`
	UnmatchedGateway  int            `gorm:"column:unmatched_gateway;not null"`
	UnmatchedLedger   int            `gorm:"column:unmatched_ledger;not null"`
	GatewayTotalCents int64          `gorm:"column:gateway_total_cents;not null"`
	LedgerTotalCents  int64          `gorm:"column:ledger_total_cents;not null"`
	DiscrepancyCents  int64          `gorm:"column:discrepancy_cents;not null"`
	Anomalies         pq.StringArray `gorm:"column:anomalies;type:text[];default:ARRAY[]::text[]"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}
