package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification records a low-balance alert raised for a wallet. The wallet's
// low_balance_notified flag rate-limits these to at most one per crossing;
// dispatch itself is fire-and-forget and never part of the financial tx.
type Notification struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID       uuid.UUID  `gorm:"column:wallet_id;type:uuid;not null;index"`
	Kind           string     `gorm:"column:kind;not null"`
	EffectiveCents int64      `gorm:"column:effective_cents;not null"`
	ThresholdCents int64      `gorm:"column:threshold_cents;not null"`
	DispatchedAt   *time.Time `gorm:"column:dispatched_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
