package enums

import "fmt"

// TopUpStatus maps to the topup_status enum in Postgres.
type TopUpStatus string

const (
	TopUpStatusPending TopUpStatus = "pending"
	TopUpStatusSuccess TopUpStatus = "success"
	TopUpStatusFailed  TopUpStatus = "failed"
)

var validTopUpStatuses = []TopUpStatus{
	TopUpStatusPending,
	TopUpStatusSuccess,
	TopUpStatusFailed,
}

// IsValid reports whether the value matches the canonical top-up status enum.
func (s TopUpStatus) IsValid() bool {
	for _, candidate := range validTopUpStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the top-up reached a final state.
func (s TopUpStatus) IsTerminal() bool {
	return s == TopUpStatusSuccess || s == TopUpStatusFailed
}

// ParseTopUpStatus converts raw input into TopUpStatus.
func ParseTopUpStatus(value string) (TopUpStatus, error) {
	for _, candidate := range validTopUpStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid top-up status %q", value)
}
