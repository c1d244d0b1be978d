package enums

import "fmt"

// RefundStatus maps to the refund_status enum in Postgres.
type RefundStatus string

const (
	RefundStatusProcessed RefundStatus = "processed"
)

// IsValid reports whether the value matches the canonical refund status enum.
func (s RefundStatus) IsValid() bool {
	return s == RefundStatusProcessed
}

// ParseRefundStatus converts raw input into RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	if RefundStatus(value) == RefundStatusProcessed {
		return RefundStatusProcessed, nil
	}
	return "", fmt.Errorf("invalid refund status %q", value)
}
