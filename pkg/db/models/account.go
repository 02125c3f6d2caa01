package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/enums"
)

// Account holds a balance owned by one user. Balance only changes under a row lock.
type Account struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	AccountNumber string            `gorm:"column:account_number;type:text;not null;uniqueIndex"`
	AccountType   enums.AccountType `gorm:"column:account_type;type:account_type_enum;not null"`
	Balance       decimal.Decimal   `gorm:"column:balance;type:numeric(18,2);not null;default:0"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
