package enums

import "fmt"

// WalletStatus maps to the wallet_status enum in Postgres.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusFrozen WalletStatus = "frozen"
	WalletStatusClosed WalletStatus = "closed"
)

var validWalletStatuses = []WalletStatus{
	WalletStatusActive,
	WalletStatusFrozen,
	WalletStatusClosed,
}

// IsValid reports whether the value matches the canonical wallet status enum.
func (s WalletStatus) IsValid() bool {
	for _, candidate := range validWalletStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanMutate reports whether balance-changing operations are allowed for the status.
func (s WalletStatus) CanMutate() bool {
	return s == WalletStatusActive
}

// ParseWalletStatus converts raw input into WalletStatus.
func ParseWalletStatus(value string) (WalletStatus, error) {
	for _, candidate := range validWalletStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet status %q", value)
}
