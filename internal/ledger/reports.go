package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/pagination"
)

const dayLayout = "2006-01-02"

// HistoryPage is one page of the log, newest first.
type HistoryPage struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

// DailyTotals aggregates one UTC calendar day. Total is the unsigned sum of
// every entry, matching how the dashboard charts volume.
type DailyTotals struct {
	Date        string          `json:"date"`
	Deposits    decimal.Decimal `json:"deposits"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	TransferIn  decimal.Decimal `json:"transfer_in"`
	TransferOut decimal.Decimal `json:"transfer_out"`
	Total       decimal.Decimal `json:"total"`
}

// BalancePoint is the running balance right after one log entry.
type BalancePoint struct {
	At      time.Time       `json:"x"`
	Balance decimal.Decimal `json:"y"`
}

func (s *service) History(ctx context.Context, userID, accountID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if err := s.checkOwner(ctx, userID, accountID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	entries, err := s.repo.ListPage(ctx, accountID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction history")
	}

	rows, more := pagination.Split(entries, params.Limit)
	page := &HistoryPage{Transactions: rows}
	if more {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	if page.Transactions == nil {
		page.Transactions = []models.Transaction{}
	}
	return page, nil
}

func (s *service) DailyChart(ctx context.Context, userID, accountID uuid.UUID) ([]DailyTotals, error) {
	entries, err := s.chronological(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	days := []DailyTotals{}
	for _, entry := range entries {
		date := entry.CreatedAt.UTC().Format(dayLayout)
		if len(days) == 0 || days[len(days)-1].Date != date {
			days = append(days, DailyTotals{Date: date})
		}
		day := &days[len(days)-1]
		switch entry.Type {
		case enums.TransactionTypeDeposit:
			day.Deposits = day.Deposits.Add(entry.Amount)
		case enums.TransactionTypeWithdraw:
			day.Withdrawals = day.Withdrawals.Add(entry.Amount)
		case enums.TransactionTypeTransferIn:
			day.TransferIn = day.TransferIn.Add(entry.Amount)
		case enums.TransactionTypeTransferOut:
			day.TransferOut = day.TransferOut.Add(entry.Amount)
		}
		day.Total = day.Total.Add(entry.Amount)
	}
	return days, nil
}

func (s *service) BalanceTrend(ctx context.Context, userID, accountID uuid.UUID) ([]BalancePoint, error) {
	entries, err := s.chronological(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	points := make([]BalancePoint, 0, len(entries))
	running := decimal.Zero
	for _, entry := range entries {
		running = running.Add(entry.Signed())
		points = append(points, BalancePoint{At: entry.CreatedAt, Balance: running})
	}
	return points, nil
}

func (s *service) TypeSplit(ctx context.Context, userID, accountID uuid.UUID) ([]TypeTotals, error) {
	if err := s.checkOwner(ctx, userID, accountID); err != nil {
		return nil, err
	}
	rows, err := s.repo.TotalsByType(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load type split")
	}
	if rows == nil {
		rows = []TypeTotals{}
	}
	return rows, nil
}

func (s *service) chronological(ctx context.Context, userID, accountID uuid.UUID) ([]models.Transaction, error) {
	if err := s.checkOwner(ctx, userID, accountID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListChronological(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transactions")
	}
	return entries, nil
}

func (s *service) checkOwner(ctx context.Context, userID, accountID uuid.UUID) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	return accounts.CheckOwner(account, userID)
}
