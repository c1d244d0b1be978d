package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// TopUp is an external funding request. It carries no balance effect until
// confirmed; terminal states are final and a retry needs a fresh row with a
// new idempotency key.
type TopUp struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID         uuid.UUID         `gorm:"column:wallet_id;type:uuid;not null;index"`
	AmountCents      int64             `gorm:"column:amount_cents;not null"`
	Currency         enums.Currency    `gorm:"column:currency;not null"`
	Status           enums.TopUpStatus `gorm:"column:status;type:topup_status;not null;default:'pending'"`
	IdempotencyKey   string            `gorm:"column:idempotency_key;not null;uniqueIndex"`
	Gateway          string            `gorm:"column:gateway;not null"`
	GatewayReference *string           `gorm:"column:gateway_reference"`
	FailureReason    *string           `gorm:"column:failure_reason"`
	ExpiresAt        time.Time         `gorm:"column:expires_at;not null"`
	ConfirmedAt      *time.Time        `gorm:"column:confirmed_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table to "topups"; gorm would otherwise pluralize the
// struct to top_ups.
func (TopUp) TableName() string {
	return "topups"
}
