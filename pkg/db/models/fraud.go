package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/enums"
)

// FraudAlert is unique per (event, reason); duplicate inserts are ignored.
type FraudAlert struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	EventID   uuid.UUID           `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_fraud_alerts_event_reason,priority:1"`
	AccountID uuid.UUID           `gorm:"column:account_id;type:uuid;not null;index"`
	Reason    enums.AlertReason   `gorm:"column:reason;type:text;not null;uniqueIndex:ux_fraud_alerts_event_reason,priority:2"`
	Severity  enums.AlertSeverity `gorm:"column:severity;type:alert_severity_enum;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (a *FraudAlert) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// FraudScore stores the latest ML score for an event.
type FraudScore struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	EventID   uuid.UUID `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;not null"`
	Score     float64   `gorm:"column:score;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *FraudScore) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
