package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
)

// Execution is the result of debiting a verified withdrawal.
type Execution struct {
	Entry        *models.Transaction
	BalanceAfter decimal.Decimal
}

// Executor applies withdrawals that were held back for OTP verification. It
// runs inside the dispatcher's transaction.
type Executor struct {
	accounts accounts.Repository
	repo     Repository
}

// NewExecutor wires the withdrawal executor.
func NewExecutor(accountsRepo accounts.Repository, repo Repository) (*Executor, error) {
	if accountsRepo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &Executor{accounts: accountsRepo, repo: repo}, nil
}

// ExecuteWithdrawal locks the account, re-checks the balance and debits.
// Returns ErrInsufficientFunds when the balance no longer covers the amount.
func (e *Executor) ExecuteWithdrawal(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (*Execution, error) {
	accountsRepo := e.accounts.WithTx(tx)
	locked, err := accountsRepo.LockForUpdate(ctx, event.AccountID)
	if err != nil {
		return nil, err
	}
	if len(locked) != 1 {
		return nil, fmt.Errorf("account %s not found", event.AccountID)
	}
	account := locked[0]
	if account.Balance.LessThan(event.Amount) {
		return nil, ErrInsufficientFunds
	}

	balance := account.Balance.Sub(event.Amount)
	entry, err := applyEntry(ctx, accountsRepo, e.repo.WithTx(tx), account.ID, balance, enums.TransactionTypeWithdraw, event.Amount, nil)
	if err != nil {
		return nil, err
	}
	return &Execution{Entry: entry, BalanceAfter: balance}, nil
}
