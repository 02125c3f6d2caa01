package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/auth"
	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/pagination"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubAccounts struct{}

func (stubAccounts) Open(_ context.Context, userID uuid.UUID, kind enums.AccountType) (*models.Account, error) {
	return &models.Account{ID: uuid.New(), UserID: userID, AccountNumber: "AC0000000001", AccountType: kind, Balance: decimal.Zero}, nil
}

func (stubAccounts) List(context.Context, uuid.UUID) ([]models.Account, error) {
	return []models.Account{}, nil
}

func (stubAccounts) GetOwned(context.Context, uuid.UUID, uuid.UUID) (*models.Account, error) {
	return nil, nil
}

type stubLedger struct {
	withdrawCalls int
}

func (s *stubLedger) Deposit(_ context.Context, in ledger.MutationInput) (*ledger.MutationResult, error) {
	return &ledger.MutationResult{EventID: uuid.New(), Balance: in.Amount}, nil
}

func (s *stubLedger) Withdraw(_ context.Context, in ledger.MutationInput) (*ledger.MutationResult, error) {
	s.withdrawCalls++
	return &ledger.MutationResult{EventID: uuid.New(), Balance: decimal.NewFromInt(20000), OTPRequired: true}, nil
}

func (s *stubLedger) Transfer(context.Context, ledger.TransferInput) (*ledger.TransferResult, error) {
	return &ledger.TransferResult{EventID: uuid.New()}, nil
}

func (s *stubLedger) History(context.Context, uuid.UUID, uuid.UUID, pagination.Params) (*ledger.HistoryPage, error) {
	return &ledger.HistoryPage{}, nil
}

func (s *stubLedger) DailyChart(context.Context, uuid.UUID, uuid.UUID) ([]ledger.DailyTotals, error) {
	return nil, nil
}

func (s *stubLedger) BalanceTrend(context.Context, uuid.UUID, uuid.UUID) ([]ledger.BalancePoint, error) {
	return nil, nil
}

func (s *stubLedger) TypeSplit(context.Context, uuid.UUID, uuid.UUID) ([]ledger.TypeTotals, error) {
	return nil, nil
}

type stubGate struct{}

func (stubGate) Verify(context.Context, otp.VerifyParams) (otp.Result, error) {
	return otp.ResultSuccess, nil
}

func (stubGate) Pending(context.Context, uuid.UUID) ([]otp.PendingChallenge, error) {
	return nil, nil
}

type stubFraud struct{}

func (stubFraud) RecentAlerts(context.Context, uuid.UUID, uuid.UUID) ([]models.FraudAlert, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "bank-management-system", ExpirationMinutes: 30},
		RateLimit: config.RateLimitConfig{
			Window:  time.Minute,
			PerUser: 30,
			PerIP:   120,
		},
	}
}

func newTestRouter(t *testing.T, db stubPinger, ledgerSvc *stubLedger) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:       db,
		Accounts: stubAccounts{},
		Ledger:   ledgerSvc,
		OTP:      stubGate{},
		Fraud:    stubFraud{},
	})
	return router, cfg
}

func bearer(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.Sign(cfg.JWT, time.Now(), userID)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{}, &stubLedger{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHealthReadyReportsDatabaseFailure(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{err: context.DeadlineExceeded}, &stubLedger{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "database")
}

func TestAPIRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{}, &stubLedger{})

	for _, target := range []string{"/api/v1/accounts", "/api/v1/otp/pending"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, resp.Code, target)
	}
}

func TestOpenAccountRoute(t *testing.T) {
	router, cfg := newTestRouter(t, stubPinger{}, &stubLedger{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"account_type":"current"}`))
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), `"account_type":"current"`)
}

func TestWithdrawRouteAcceptsStepUp(t *testing.T) {
	ledgerSvc := &stubLedger{}
	router, cfg := newTestRouter(t, stubPinger{}, ledgerSvc)

	body := `{"account_id":"` + uuid.NewString() + `","amount":"15000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/withdraw", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, 1, ledgerSvc.withdrawCalls)
	assert.Contains(t, resp.Body.String(), `"otp_required":true`)
}

func TestAccountScopedRoutes(t *testing.T) {
	router, cfg := newTestRouter(t, stubPinger{}, &stubLedger{})
	token := bearer(t, cfg, uuid.New())
	accountID := uuid.NewString()

	for _, suffix := range []string{"transactions", "transactions/daily", "transactions/balance", "transactions/types", "fraud-alerts"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/"+accountID+"/"+suffix, nil)
		req.Header.Set("Authorization", token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code, suffix)
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{}, &stubLedger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v2/accounts", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
