package enums

import (
	"fmt"
	"strings"
)

// BorrowStatus is derived from a borrow's returned_at and is_pending columns.
type BorrowStatus string

const (
	BorrowStatusActive        BorrowStatus = "active"
	BorrowStatusPendingReturn BorrowStatus = "pending_return"
	BorrowStatusReturned      BorrowStatus = "returned"
)

var validBorrowStatuses = []BorrowStatus{
	BorrowStatusActive,
	BorrowStatusPendingReturn,
	BorrowStatusReturned,
}

func (s BorrowStatus) String() string {
	return string(s)
}

func (s BorrowStatus) IsValid() bool {
	for _, candidate := range validBorrowStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBorrowStatus converts query input into a BorrowStatus.
func ParseBorrowStatus(value string) (BorrowStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validBorrowStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid borrow status %q", value)
}
