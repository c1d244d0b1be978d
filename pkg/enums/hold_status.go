package enums

import "fmt"

// HoldStatus maps to the hold_status enum in Postgres.
type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "active"
	HoldStatusCaptured HoldStatus = "captured"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusExpired  HoldStatus = "expired"
)

var validHoldStatuses = []HoldStatus{
	HoldStatusActive,
	HoldStatusCaptured,
	HoldStatusReleased,
	HoldStatusExpired,
}

// IsValid reports whether the value matches the canonical hold status enum.
func (s HoldStatus) IsValid() bool {
	for _, candidate := range validHoldStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the hold can no longer transition.
func (s HoldStatus) IsTerminal() bool {
	return s != HoldStatusActive
}

// ParseHoldStatus converts raw input into HoldStatus.
func ParseHoldStatus(value string) (HoldStatus, error) {
	for _, candidate := range validHoldStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid hold status %q", value)
}
