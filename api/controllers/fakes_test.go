package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/void1100/Bank-management-system/api/middleware"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newRequest(method, target, body string, userID uuid.UUID, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID.String())
	}
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

type stubAccounts struct {
	openFn func(ctx context.Context, userID uuid.UUID, accountType enums.AccountType) (*models.Account, error)
	listFn func(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
}

func (s *stubAccounts) Open(ctx context.Context, userID uuid.UUID, accountType enums.AccountType) (*models.Account, error) {
	return s.openFn(ctx, userID, accountType)
}

func (s *stubAccounts) List(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	return s.listFn(ctx, userID)
}

func (s *stubAccounts) GetOwned(context.Context, uuid.UUID, uuid.UUID) (*models.Account, error) {
	return nil, nil
}

type stubLedger struct {
	depositFn  func(ctx context.Context, in ledger.MutationInput) (*ledger.MutationResult, error)
	withdrawFn func(ctx context.Context, in ledger.MutationInput) (*ledger.MutationResult, error)
	transferFn func(ctx context.Context, in ledger.TransferInput) (*ledger.TransferResult, error)
	historyFn  func(ctx context.Context, userID, accountID uuid.UUID, p pagination.Params) (*ledger.HistoryPage, error)
	dailyFn    func(ctx context.Context, userID, accountID uuid.UUID) ([]ledger.DailyTotals, error)
}

func (s *stubLedger) Deposit(ctx context.Context, in ledger.MutationInput) (*ledger.MutationResult, error) {
	return s.depositFn(ctx, in)
}

func (s *stubLedger) Withdraw(ctx context.Context, in ledger.MutationInput) (*ledger.MutationResult, error) {
	return s.withdrawFn(ctx, in)
}

func (s *stubLedger) Transfer(ctx context.Context, in ledger.TransferInput) (*ledger.TransferResult, error) {
	return s.transferFn(ctx, in)
}

func (s *stubLedger) History(ctx context.Context, userID, accountID uuid.UUID, p pagination.Params) (*ledger.HistoryPage, error) {
	return s.historyFn(ctx, userID, accountID, p)
}

func (s *stubLedger) DailyChart(ctx context.Context, userID, accountID uuid.UUID) ([]ledger.DailyTotals, error) {
	return s.dailyFn(ctx, userID, accountID)
}

func (s *stubLedger) BalanceTrend(context.Context, uuid.UUID, uuid.UUID) ([]ledger.BalancePoint, error) {
	return nil, nil
}

func (s *stubLedger) TypeSplit(context.Context, uuid.UUID, uuid.UUID) ([]ledger.TypeTotals, error) {
	return nil, nil
}

type stubGate struct {
	verifyFn  func(ctx context.Context, p otp.VerifyParams) (otp.Result, error)
	pendingFn func(ctx context.Context, userID uuid.UUID) ([]otp.PendingChallenge, error)
}

func (s *stubGate) Verify(ctx context.Context, p otp.VerifyParams) (otp.Result, error) {
	return s.verifyFn(ctx, p)
}

func (s *stubGate) Pending(ctx context.Context, userID uuid.UUID) ([]otp.PendingChallenge, error) {
	return s.pendingFn(ctx, userID)
}

type stubFraud struct {
	alertsFn func(ctx context.Context, userID, accountID uuid.UUID) ([]models.FraudAlert, error)
}

func (s *stubFraud) RecentAlerts(ctx context.Context, userID, accountID uuid.UUID) ([]models.FraudAlert, error) {
	return s.alertsFn(ctx, userID, accountID)
}
