package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Referral event types, in funnel order
const (
	EventClick          = "click"
	EventSignup         = "signup"
	EventRedeemed       = "redeemed"
	EventOrderCompleted = "order_completed"
	EventOrderCancelled = "order_cancelled"
)

// ReferralCode is a shareable code owned by a referrer. At most one
// active, unexpired code exists per user; expiry is checked at read
// time rather than flipping Active eagerly.
type ReferralCode struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Code      string         `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	ShareLink string         `json:"share_link"`
	MaxUses   int            `gorm:"default:1" json:"max_uses"`
	Active    bool           `gorm:"default:true" json:"active"`
	ExpiresAt time.Time      `json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (c *ReferralCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Valid reports whether the code is active and not past its expiry.
func (c *ReferralCode) Valid(now time.Time) bool {
	return c.Active && now.Before(c.ExpiresAt)
}

// ReferralEvent is one entry in the append-only referral funnel log.
// Rows are never updated after insert except for the Flagged marker.
type ReferralEvent struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	ReferralCodeID uuid.UUID       `gorm:"type:uuid;not null;index" json:"referral_code_id"`
	SessionID      string          `gorm:"type:varchar(100)" json:"session_id"`
	EventType      string          `gorm:"type:varchar(20);not null;index" json:"event_type"`
	RefereeUserID  *uuid.UUID      `gorm:"type:uuid;index" json:"referee_user_id,omitempty"`
	RefereeEmail   string          `json:"referee_email,omitempty"`
	OrderID        string          `gorm:"type:varchar(100);index" json:"order_id,omitempty"`
	OrderValue     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"order_value"`
	Flagged        bool            `gorm:"default:false" json:"flagged"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (e *ReferralEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
