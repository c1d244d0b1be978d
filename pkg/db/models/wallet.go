package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/pkg/enums"
)

// Wallet is the mutable prepaid balance per (account, currency). Every
// balance-changing operation locks this row for the duration of its
// transaction; it is the only lock boundary in the engine.
type Wallet struct {
	ID                       uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID                uuid.UUID          `gorm:"column:account_id;type:uuid;not null;uniqueIndex:uq_wallets_account_currency"`
	Currency                 enums.Currency     `gorm:"column:currency;not null;uniqueIndex:uq_wallets_account_currency"`
	AvailableCents           int64              `gorm:"column:available_cents;not null;default:0"`
	ReservedCents            int64              `gorm:"column:reserved_cents;not null;default:0"`
	TotalCreditedCents       int64              `gorm:"column:total_credited_cents;not null;default:0"`
	TotalDebitedCents        int64              `gorm:"column:total_debited_cents;not null;default:0"`
	Status                   enums.WalletStatus `gorm:"column:status;type:wallet_status;not null;default:'active'"`
	LowBalanceThresholdCents int64              `gorm:"column:low_balance_threshold_cents;not null;default:0"`
	LowBalanceNotified       bool               `gorm:"column:low_balance_notified;not null;default:false"`
	AutoTopUpEnabled         bool               `gorm:"column:auto_topup_enabled;not null;default:false"`
	AutoTopUpAmountCents     int64              `gorm:"column:auto_topup_amount_cents;not null;default:0"`
	CreatedAt                time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectiveCents is the only amount ever compared against a new charge or hold.
func (w *Wallet) EffectiveCents() int64 {
	return w.AvailableCents - w.ReservedCents
}

// BelowThreshold reports whether the effective balance crossed the configured
// low-balance threshold. A zero threshold disables the check.
func (w *Wallet) BelowThreshold() bool {
	return w.LowBalanceThresholdCents > 0 && w.EffectiveCents() < w.LowBalanceThresholdCents
}
