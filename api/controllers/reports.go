package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/void1100/Bank-management-system/api/responses"
	"github.com/void1100/Bank-management-system/api/validators"
	"github.com/void1100/Bank-management-system/internal/fraud"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/pagination"
)

type accountReport[T any] func(ctx context.Context, userID, accountID uuid.UUID) (T, error)

// report serves a read-only view of one owned account. render shapes the
// result for the wire; nil writes it as is.
func report[T any](fetch accountReport[T], render func(T) any, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, accountID, err := ownedAccountParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := fetch(r.Context(), userID, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if render == nil {
			responses.WriteSuccess(w, out)
			return
		}
		responses.WriteSuccess(w, render(out))
	}
}

// TransactionHistory returns an account's ledger entries newest first, one
// cursor page at a time.
func TransactionHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("ledger service unavailable", logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.QueryInt(r, "limit", validators.IntRange{
			Default: pagination.DefaultLimit,
			Min:     1,
			Max:     pagination.MaxLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.QueryCursor(r, "cursor")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page := func(ctx context.Context, userID, accountID uuid.UUID) (*ledger.HistoryPage, error) {
			return svc.History(ctx, userID, accountID, pagination.Params{Limit: limit, Cursor: cursor})
		}
		report(page, func(p *ledger.HistoryPage) any {
			return historyResponse{Transactions: toTransactionDTOs(p.Transactions), NextCursor: p.NextCursor}
		}, logg)(w, r)
	}
}

// DailyChart returns per-day totals by transaction kind.
func DailyChart(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("ledger service unavailable", logg)
	}
	return report(svc.DailyChart, nil, logg)
}

// BalanceTrend returns the running balance after each entry.
func BalanceTrend(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("ledger service unavailable", logg)
	}
	return report(svc.BalanceTrend, nil, logg)
}

func TypeSplit(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("ledger service unavailable", logg)
	}
	return report(svc.TypeSplit, nil, logg)
}

// FraudAlerts returns the latest alerts raised on an account.
func FraudAlerts(svc fraud.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("fraud service unavailable", logg)
	}
	return report(svc.RecentAlerts, func(rows []models.FraudAlert) any { return toAlertDTOs(rows) }, logg)
}
