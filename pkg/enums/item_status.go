package enums

import "fmt"

// ItemStatus tracks the lifecycle of an auction item. Terminal states
// (SOLD, EXPIRED) are entered exactly once and never left.
type ItemStatus string

const (
	ItemStatusActive         ItemStatus = "ACTIVE"
	ItemStatusSold           ItemStatus = "SOLD"
	ItemStatusExpired        ItemStatus = "EXPIRED"
	ItemStatusPendingPayment ItemStatus = "PENDING_PAYMENT"
)

var validItemStatuses = []ItemStatus{
	ItemStatusActive,
	ItemStatusSold,
	ItemStatusExpired,
	ItemStatusPendingPayment,
}

// String implements fmt.Stringer.
func (s ItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ItemStatus.
func (s ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the item lifecycle.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSold || s == ItemStatusExpired
}

// ParseItemStatus converts raw input into an ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}
