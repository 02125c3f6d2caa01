package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
)

// Repository appends audit lines for terminal event outcomes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, eventID uuid.UUID, info string) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AuditLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, eventID uuid.UUID, info string) error {
	return r.db.WithContext(ctx).Create(&models.AuditLog{EventID: eventID, Info: info}).Error
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CompletedInfo formats the line written when an event completes without a gate.
func CompletedInfo(kind enums.EventType, amount decimal.Decimal) string {
	return fmt.Sprintf("Completed %s %s", kind, amount.StringFixed(2))
}

// ExecutedWithdrawalInfo formats the line written when a verified withdrawal is
// debited.
func ExecutedWithdrawalInfo(amount decimal.Decimal) string {
	return fmt.Sprintf("Executed withdraw %s after OTP verification", amount.StringFixed(2))
}
