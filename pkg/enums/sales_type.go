package enums

import "fmt"

// SalesType describes how an item can be purchased.
type SalesType string

const (
	SalesTypeDirect  SalesType = "DIRECT"
	SalesTypeAuction SalesType = "AUCTION"
	SalesTypeHybrid  SalesType = "HYBRID"
)

var validSalesTypes = []SalesType{
	SalesTypeDirect,
	SalesTypeAuction,
	SalesTypeHybrid,
}

// String implements fmt.Stringer.
func (s SalesType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SalesType.
func (s SalesType) IsValid() bool {
	for _, candidate := range validSalesTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// Auctionable reports whether bids can be placed against the item.
func (s SalesType) Auctionable() bool {
	return s == SalesTypeAuction || s == SalesTypeHybrid
}

// ParseSalesType converts raw input into a SalesType.
func ParseSalesType(value string) (SalesType, error) {
	for _, candidate := range validSalesTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sales type %q", value)
}
