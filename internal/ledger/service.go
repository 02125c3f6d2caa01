package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/internal/events"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/pagination"
)

// ErrInsufficientFunds is returned when a debit would take a balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StepUpPolicy decides whether a mutation must wait for OTP verification.
type StepUpPolicy interface {
	RequiresStepUp(kind enums.EventType, amount decimal.Decimal) bool
}

// Service applies balance mutations and serves account history.
type Service interface {
	Deposit(ctx context.Context, input MutationInput) (*MutationResult, error)
	Withdraw(ctx context.Context, input MutationInput) (*MutationResult, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	History(ctx context.Context, userID, accountID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	DailyChart(ctx context.Context, userID, accountID uuid.UUID) ([]DailyTotals, error)
	BalanceTrend(ctx context.Context, userID, accountID uuid.UUID) ([]BalancePoint, error)
	TypeSplit(ctx context.Context, userID, accountID uuid.UUID) ([]TypeTotals, error)
}

// MutationInput describes a single-account deposit or withdrawal.
type MutationInput struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
	Amount    decimal.Decimal
}

// MutationResult reports the balance after the call. When OTPRequired is set
// the balance is untouched and the withdrawal waits on EventID.
type MutationResult struct {
	EventID       uuid.UUID       `json:"event_id"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	OTPRequired   bool            `json:"otp_required"`
}

// TransferInput describes a movement between two accounts.
type TransferInput struct {
	UserID        uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
}

// TransferResult reports both balances after the transfer.
type TransferResult struct {
	EventID     uuid.UUID       `json:"event_id"`
	FromBalance decimal.Decimal `json:"from_balance"`
	ToBalance   decimal.Decimal `json:"to_balance"`
}

type service struct {
	tx       txRunner
	accounts accounts.Repository
	repo     Repository
	events   events.Repository
	stepUp   StepUpPolicy
}

// NewService wires the ledger service.
func NewService(tx txRunner, accountsRepo accounts.Repository, repo Repository, eventsRepo events.Repository, stepUp StepUpPolicy) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if accountsRepo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if eventsRepo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if stepUp == nil {
		return nil, fmt.Errorf("step-up policy required")
	}
	return &service{
		tx:       tx,
		accounts: accountsRepo,
		repo:     repo,
		events:   eventsRepo,
		stepUp:   stepUp,
	}, nil
}

func (s *service) Deposit(ctx context.Context, input MutationInput) (*MutationResult, error) {
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}

	var result *MutationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := s.lockOwned(ctx, tx, input.UserID, input.AccountID)
		if err != nil {
			return err
		}

		balance := account.Balance.Add(input.Amount)
		entry, err := s.apply(ctx, tx, account.ID, balance, enums.TransactionTypeDeposit, input.Amount, nil)
		if err != nil {
			return err
		}
		event, err := s.enqueue(ctx, tx, account, enums.EventTypeDeposit, input.Amount)
		if err != nil {
			return err
		}
		result = &MutationResult{EventID: event.ID, TransactionID: &entry.ID, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err, "deposit")
	}
	return result, nil
}

// Withdraw debits inline unless the step-up policy demands OTP, in which case
// only the event is queued and the balance is left untouched.
func (s *service) Withdraw(ctx context.Context, input MutationInput) (*MutationResult, error) {
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}

	var result *MutationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := s.lockOwned(ctx, tx, input.UserID, input.AccountID)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(input.Amount) {
			return insufficient("Insufficient balance")
		}

		if s.stepUp.RequiresStepUp(enums.EventTypeWithdraw, input.Amount) {
			event, err := s.enqueue(ctx, tx, account, enums.EventTypeWithdraw, input.Amount)
			if err != nil {
				return err
			}
			result = &MutationResult{EventID: event.ID, Balance: account.Balance, OTPRequired: true}
			return nil
		}

		balance := account.Balance.Sub(input.Amount)
		entry, err := s.apply(ctx, tx, account.ID, balance, enums.TransactionTypeWithdraw, input.Amount, nil)
		if err != nil {
			return err
		}
		event, err := s.enqueue(ctx, tx, account, enums.EventTypeWithdraw, input.Amount)
		if err != nil {
			return err
		}
		result = &MutationResult{EventID: event.ID, TransactionID: &entry.ID, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err, "withdraw")
	}
	return result, nil
}

func (s *service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.FromAccountID == uuid.Nil || input.ToAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Missing fields")
	}
	if input.FromAccountID == input.ToAccountID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cannot transfer to same account")
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}

	var result *TransferResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.accounts.WithTx(tx).LockForUpdate(ctx, input.FromAccountID, input.ToAccountID)
		if err != nil {
			return err
		}
		var from, to *models.Account
		for i := range locked {
			switch locked[i].ID {
			case input.FromAccountID:
				from = &locked[i]
			case input.ToAccountID:
				to = &locked[i]
			}
		}
		if from == nil || to == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Account not found")
		}
		if from.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Unauthorized transfer")
		}
		if from.Balance.LessThan(input.Amount) {
			return insufficient("Insufficient funds")
		}

		fromBalance := from.Balance.Sub(input.Amount)
		toBalance := to.Balance.Add(input.Amount)
		if _, err := s.apply(ctx, tx, from.ID, fromBalance, enums.TransactionTypeTransferOut, input.Amount, &to.ID); err != nil {
			return err
		}
		if _, err := s.apply(ctx, tx, to.ID, toBalance, enums.TransactionTypeTransferIn, input.Amount, &from.ID); err != nil {
			return err
		}
		event, err := s.enqueue(ctx, tx, from, enums.EventTypeTransfer, input.Amount)
		if err != nil {
			return err
		}
		result = &TransferResult{EventID: event.ID, FromBalance: fromBalance, ToBalance: toBalance}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err, "transfer")
	}
	return result, nil
}

func (s *service) lockOwned(ctx context.Context, tx *gorm.DB, userID, accountID uuid.UUID) (*models.Account, error) {
	locked, err := s.accounts.WithTx(tx).LockForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var account *models.Account
	if len(locked) == 1 {
		account = &locked[0]
	}
	if err := accounts.CheckOwner(account, userID); err != nil {
		return nil, err
	}
	return account, nil
}

// apply writes the new balance and the matching log entry. The caller holds
// the account lock.
func (s *service) apply(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, balance decimal.Decimal, kind enums.TransactionType, amount decimal.Decimal, counterparty *uuid.UUID) (*models.Transaction, error) {
	return applyEntry(ctx, s.accounts.WithTx(tx), s.repo.WithTx(tx), accountID, balance, kind, amount, counterparty)
}

func (s *service) enqueue(ctx context.Context, tx *gorm.DB, account *models.Account, kind enums.EventType, amount decimal.Decimal) (*models.TransactionEvent, error) {
	event := &models.TransactionEvent{
		AccountID:      account.ID,
		Type:           kind,
		Amount:         amount,
		InitialBalance: account.Balance,
	}
	if err := s.events.WithTx(tx).Enqueue(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func applyEntry(ctx context.Context, accountsRepo accounts.Repository, repo Repository, accountID uuid.UUID, balance decimal.Decimal, kind enums.TransactionType, amount decimal.Decimal, counterparty *uuid.UUID) (*models.Transaction, error) {
	if balance.IsNegative() {
		return nil, ErrInsufficientFunds
	}
	if err := accountsRepo.UpdateBalance(ctx, accountID, balance); err != nil {
		return nil, err
	}
	entry := &models.Transaction{
		AccountID:             accountID,
		Type:                  kind,
		Amount:                amount,
		CounterpartyAccountID: counterparty,
	}
	if err := repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Amount must be > 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Amount must have at most two decimal places")
	}
	return nil
}

func insufficient(message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeInsufficient, ErrInsufficientFunds, message)
}

func wrapStorage(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, ErrInsufficientFunds) {
		return insufficient("Insufficient funds")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
