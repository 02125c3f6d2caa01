package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/enums"
)

// Transaction is an immutable ledger log entry.
type Transaction struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	AccountID             uuid.UUID             `gorm:"column:account_id;type:uuid;not null;index:idx_transactions_account_created,priority:1"`
	Type                  enums.TransactionType `gorm:"column:type;type:transaction_type_enum;not null"`
	Amount                decimal.Decimal       `gorm:"column:amount;type:numeric(18,2);not null"`
	CounterpartyAccountID *uuid.UUID            `gorm:"column:counterparty_account_id;type:uuid"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime;index:idx_transactions_account_created,priority:2"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// Signed returns the amount with the sign it contributes to the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}
