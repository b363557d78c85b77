package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a user's custodial balance. The balance never goes negative;
// mutations happen only through the ledger service's paired debit/credit.
type Wallet struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(10,2);not null;default:0"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
