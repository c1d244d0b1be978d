package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// Refund is an amount-capped reversal of a prior debit ledger entry. Rows are
// written only once the refund is realized; the sum of processed refunds per
// original entry never exceeds that entry's amount.
type Refund struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID        uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index"`
	OriginalEntryID uuid.UUID          `gorm:"column:original_entry_id;type:uuid;not null;index"`
	AmountCents     int64              `gorm:"column:amount_cents;not null"`
	Status          enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'processed'"`
	Reason          string             `gorm:"column:reason;not null"`
	IdempotencyKey  string             `gorm:"column:idempotency_key;not null;uniqueIndex"`
	LedgerEntryID   uuid.UUID          `gorm:"column:ledger_entry_id;type:uuid;not null"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
}
