package enums

import "fmt"

// EntryDirection maps to the entry_direction enum in Postgres.
type EntryDirection string

const (
	EntryDirectionCredit EntryDirection = "credit"
	EntryDirectionDebit  EntryDirection = "debit"
)

// IsValid reports whether the value matches the canonical direction enum.
func (d EntryDirection) IsValid() bool {
	return d == EntryDirectionCredit || d == EntryDirectionDebit
}

// Opposite returns the reversing direction for a correction entry.
func (d EntryDirection) Opposite() EntryDirection {
	if d == EntryDirectionCredit {
		return EntryDirectionDebit
	}
	return EntryDirectionCredit
}

// Signed applies the direction to a positive amount in cents.
func (d EntryDirection) Signed(amountCents int64) int64 {
	if d == EntryDirectionDebit {
		return -amountCents
	}
	return amountCents
}

// ParseEntryDirection converts raw input into EntryDirection.
func ParseEntryDirection(value string) (EntryDirection, error) {
	switch EntryDirection(value) {
	case EntryDirectionCredit:
		return EntryDirectionCredit, nil
	case EntryDirectionDebit:
		return EntryDirectionDebit, nil
	}
	return "", fmt.Errorf("invalid entry direction %q", value)
}
