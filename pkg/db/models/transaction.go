package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/pkg/enums"
)

// Transaction is the settlement record for a sold item. The unique index on
// ItemID enforces at-most-one settlement per item, which is what keeps the
// closing sweep idempotent under retries.
type Transaction struct {
	ID        uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID   uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID  uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	ItemID    uuid.UUID               `gorm:"column:item_id;type:uuid;not null;uniqueIndex:uniq_transactions_item"`
	Amount    decimal.Decimal         `gorm:"column:amount;type:numeric(10,2);not null"`
	Status    enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
