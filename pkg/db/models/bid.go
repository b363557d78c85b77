package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an immutable, append-only record of an accepted bid. Rows are never
// edited or deleted; rejected bids leave no row at all.
type Bid struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID    uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	BidderID  uuid.UUID       `gorm:"column:bidder_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	Timestamp time.Time       `gorm:"column:timestamp;not null;autoCreateTime"`
}
