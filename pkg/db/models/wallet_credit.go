package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletCredit records an applied top-up keyed by the payment gateway's
// confirmation id. The unique index is what makes Credit idempotent against
// duplicate delivery of the same confirmation.
type WalletCredit struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	ConfirmationID string          `gorm:"column:confirmation_id;type:text;not null;uniqueIndex:uniq_wallet_credits_confirmation"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
