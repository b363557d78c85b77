package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusauctions/nexus-backend/pkg/enums"
)

// AuctionItem is the authoritative price/lifecycle state for a listing.
// CurrentHighestBid is zero until the first accepted bid and non-decreasing
// afterwards; only the bidding and settlement engines mutate it.
type AuctionItem struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Category          string              `gorm:"column:category;type:text;not null"`
	Title             string              `gorm:"column:title;type:text;not null"`
	Description       string              `gorm:"column:description;type:text;not null"`
	Condition         enums.ItemCondition `gorm:"column:condition;type:text;not null"`
	SalesType         enums.SalesType     `gorm:"column:sales_type;type:text;not null;default:'DIRECT'"`
	InitialPrice      decimal.Decimal     `gorm:"column:initial_price;type:numeric(10,2);not null"`
	BuyNowPrice       *decimal.Decimal    `gorm:"column:buy_now_price;type:numeric(10,2)"`
	CurrentHighestBid decimal.Decimal     `gorm:"column:current_highest_bid;type:numeric(10,2);not null;default:0"`
	ReservePrice      decimal.Decimal     `gorm:"column:reserve_price;type:numeric(10,2);not null;default:0"`
	AuctionEndTime    *time.Time          `gorm:"column:auction_end_time"`
	Status            enums.ItemStatus    `gorm:"column:status;type:text;not null;default:'ACTIVE';index"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
