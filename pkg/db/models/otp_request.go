package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OTPRequest is a one-time code bound to a single transaction event.
type OTPRequest struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventID    uuid.UUID       `gorm:"column:event_id;type:uuid;not null;index"`
	AccountID  uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	Code       string          `gorm:"column:otp_code;type:text;not null"`
	ExpiresAt  time.Time       `gorm:"column:expires_at;not null"`
	IsVerified bool            `gorm:"column:is_verified;not null;default:false"`
	VerifiedAt *time.Time      `gorm:"column:verified_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *OTPRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// IsActive reports whether the challenge is unverified and unexpired at now.
func (o OTPRequest) IsActive(now time.Time) bool {
	return !o.IsVerified && o.ExpiresAt.After(now)
}

// TableName keeps the historical table name.
func (OTPRequest) TableName() string {
	return "otp_requests"
}
