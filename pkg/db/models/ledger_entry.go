package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// LedgerEntry is one immutable, sequenced record of a realized balance change.
// Rows are never updated or deleted; corrections append an opposite-direction
// entry with ReversalOf set. (wallet_id, sequence) is unique and gapless.
type LedgerEntry struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID            uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null;uniqueIndex:uq_ledger_wallet_sequence"`
	Sequence            int64                 `gorm:"column:sequence;not null;uniqueIndex:uq_ledger_wallet_sequence"`
	Direction           enums.EntryDirection  `gorm:"column:direction;type:entry_direction;not null"`
	AmountCents         int64                 `gorm:"column:amount_cents;not null"`
	RunningBalanceCents int64                 `gorm:"column:running_balance_cents;not null"`
	Type                enums.TransactionType `gorm:"column:type;type:transaction_type;not null"`
	ReferenceType       string                `gorm:"column:reference_type;not null"`
	ReferenceID         string                `gorm:"column:reference_id;not null;index"`
	ReversalOf          *uuid.UUID            `gorm:"column:reversal_of;type:uuid"`
	CorrelationID       string                `gorm:"column:correlation_id;not null"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// SignedCents is the entry amount with the direction applied.
func (e *LedgerEntry) SignedCents() int64 {
	return e.Direction.Signed(e.AmountCents)
}
