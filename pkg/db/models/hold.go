package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// Hold reserves funds against a wallet before a charge is realized. An active
// hold only raises the wallet's reserved counter; the ledger entry is posted
// at capture time. At most one active hold may exist per (wallet, reference).
type Hold struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID       uuid.UUID        `gorm:"column:wallet_id;type:uuid;not null;index"`
	ReferenceType  string           `gorm:"column:reference_type;not null"`
	ReferenceID    string           `gorm:"column:reference_id;not null"`
	AmountCents    int64            `gorm:"column:amount_cents;not null"`
	Status         enums.HoldStatus `gorm:"column:status;type:hold_status;not null;default:'active'"`
	IdempotencyKey string           `gorm:"column:idempotency_key;not null;uniqueIndex"`
	ExpiresAt      time.Time        `gorm:"column:expires_at;not null"`
	CapturedAt     *time.Time       `gorm:"column:captured_at"`
	ReleasedAt     *time.Time       `gorm:"column:released_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
