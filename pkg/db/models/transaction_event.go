package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/enums"
)

// TransactionEvent is a pending mutation intent awaiting fraud review. Only
// IsOTPVerified is ever updated; terminal outcomes delete the row.
type TransactionEvent struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AccountID      uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	Type           enums.EventType `gorm:"column:type;type:event_type_enum;not null"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	InitialBalance decimal.Decimal `gorm:"column:initial_balance;type:numeric(18,2);not null"`
	IsOTPVerified  bool            `gorm:"column:is_otp_verified;not null;default:false"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}

func (e *TransactionEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
