package enums

import "fmt"

// TransactionType maps to the transaction_type enum in Postgres.
type TransactionType string

const (
	TransactionTypeTopUp       TransactionType = "topup"
	TransactionTypeDebit       TransactionType = "debit"
	TransactionTypeRefund      TransactionType = "refund"
	TransactionTypeHoldCapture TransactionType = "hold_capture"
	TransactionTypeReversal    TransactionType = "reversal"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeTopUp,
	TransactionTypeDebit,
	TransactionTypeRefund,
	TransactionTypeHoldCapture,
	TransactionTypeReversal,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
