package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/void1100/Bank-management-system/pkg/enums"
)

// TransactionCompletedEvent is emitted when a queued event finishes without a
// step-up challenge.
type TransactionCompletedEvent struct {
	EventID     uuid.UUID       `json:"event_id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Type        enums.EventType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	CompletedAt time.Time       `json:"completed_at"`
}

// WithdrawalExecutedEvent is emitted when a verified high-value withdrawal is
// debited.
type WithdrawalExecutedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// FraudAlertRaisedEvent fires once per (event, reason).
type FraudAlertRaisedEvent struct {
	AlertID   uuid.UUID           `json:"alert_id"`
	EventID   uuid.UUID           `json:"event_id"`
	AccountID uuid.UUID           `json:"account_id"`
	Reason    enums.AlertReason   `json:"reason"`
	Severity  enums.AlertSeverity `json:"severity"`
}

// OTPChallengeIssuedEvent tells the delivery channel to send a code. The code
// itself never leaves the database.
type OTPChallengeIssuedEvent struct {
	OTPRequestID uuid.UUID       `json:"otp_request_id"`
	EventID      uuid.UUID       `json:"event_id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	ExpiresAt    time.Time       `json:"expires_at"`
}
