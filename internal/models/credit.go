package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Credit statuses
const (
	CreditStatusPending = "pending"
	CreditStatusActive  = "active"
	CreditStatusUsed    = "used"
	CreditStatusExpired = "expired"
)

// Credit is spendable referral credit belonging to a referrer. Amount is
// the remaining balance and only ever decreases; the row moves to "used"
// exactly when a debit drives it to zero.
type Credit struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Source    string          `gorm:"type:varchar(100)" json:"source"`
	Status    string          `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (c *Credit) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Spendable reports whether the credit can still be debited.
func (c *Credit) Spendable(now time.Time) bool {
	return c.Status == CreditStatusActive && now.Before(c.ExpiresAt) && c.Amount.IsPositive()
}
