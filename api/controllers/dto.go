package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
)

type accountDTO struct {
	ID            uuid.UUID         `json:"id"`
	AccountNumber string            `json:"account_number"`
	AccountType   enums.AccountType `json:"account_type"`
	Balance       decimal.Decimal   `json:"balance"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toAccountDTO(a models.Account) accountDTO {
	return accountDTO{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountType:   a.AccountType,
		Balance:       a.Balance,
		CreatedAt:     a.CreatedAt,
	}
}

type transactionDTO struct {
	ID                    uuid.UUID             `json:"id"`
	Type                  enums.TransactionType `json:"type"`
	Amount                decimal.Decimal       `json:"amount"`
	CounterpartyAccountID *uuid.UUID            `json:"counterparty_account_id,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
}

func toTransactionDTOs(rows []models.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(rows))
	for _, t := range rows {
		out = append(out, transactionDTO{
			ID:                    t.ID,
			Type:                  t.Type,
			Amount:                t.Amount,
			CounterpartyAccountID: t.CounterpartyAccountID,
			CreatedAt:             t.CreatedAt,
		})
	}
	return out
}

type historyResponse struct {
	Transactions []transactionDTO `json:"transactions"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}

type alertDTO struct {
	ID        uuid.UUID           `json:"id"`
	EventID   uuid.UUID           `json:"event_id"`
	Reason    enums.AlertReason   `json:"reason"`
	Severity  enums.AlertSeverity `json:"severity"`
	CreatedAt time.Time           `json:"created_at"`
}

func toAlertDTOs(rows []models.FraudAlert) []alertDTO {
	out := make([]alertDTO, 0, len(rows))
	for _, a := range rows {
		out = append(out, alertDTO{ID: a.ID, EventID: a.EventID, Reason: a.Reason, Severity: a.Severity, CreatedAt: a.CreatedAt})
	}
	return out
}

type pendingOTPDTO struct {
	RequestID     uuid.UUID       `json:"request_id"`
	EventID       uuid.UUID       `json:"event_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	OTP           string          `json:"otp"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

func toPendingDTOs(rows []otp.PendingChallenge) []pendingOTPDTO {
	out := make([]pendingOTPDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, pendingOTPDTO{
			RequestID:     p.ID,
			EventID:       p.EventID,
			AccountID:     p.AccountID,
			AccountNumber: p.AccountNumber,
			Amount:        p.Amount,
			OTP:           p.Code,
			ExpiresAt:     p.ExpiresAt,
		})
	}
	return out
}
