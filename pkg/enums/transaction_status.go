package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a settlement record.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusPaid      TransactionStatus = "PAID"
	TransactionStatusShipped   TransactionStatus = "SHIPPED"
	TransactionStatusDelivered TransactionStatus = "DELIVERED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
	TransactionStatusDispute   TransactionStatus = "DISPUTE"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusPaid,
	TransactionStatusShipped,
	TransactionStatusDelivered,
	TransactionStatusCancelled,
	TransactionStatusDispute,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
