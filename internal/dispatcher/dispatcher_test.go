package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/internal/audit"
	"github.com/void1100/Bank-management-system/internal/events"
	"github.com/void1100/Bank-management-system/internal/fraud"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/internal/otp"
	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db"
	"github.com/void1100/Bank-management-system/pkg/db/dbtest"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/outbox"
)

type stubScorer struct {
	mu    sync.Mutex
	score float64
	ok    bool
	calls int32
}

func (s *stubScorer) Score(context.Context, fraud.ScoreRequest) (float64, bool) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, s.ok
}

func (s *stubScorer) set(score float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score, s.ok = score, ok
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	depths   []int64
}

func (m *recordingMetrics) ObserveStep(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) SetDeferred(int) {}

func (m *recordingMetrics) SetQueueDepth(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths = append(m.depths, n)
}

func (m *recordingMetrics) queueDepths() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.depths...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	conn       *gorm.DB
	clock      *clock
	scorer     *stubScorer
	metrics    *recordingMetrics
	ledger     ledger.Service
	gate       *otp.Gate
	dispatcher *Dispatcher
	owner      uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	h := &harness{
		conn:    conn,
		clock:   &clock{t: time.Now().UTC()},
		scorer:  &stubScorer{score: 0.1, ok: true},
		metrics: &recordingMetrics{},
		owner:   uuid.New(),
	}

	accountsRepo := accounts.NewRepository(conn)
	eventsRepo := events.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	emitter := outbox.NewWriter(outbox.NewRepository(conn), "test", nil)

	gate, err := otp.NewGate(otp.GateParams{
		Tx:       client,
		Repo:     otp.NewRepository(conn),
		Events:   eventsRepo,
		Accounts: accountsRepo,
		Emitter:  emitter,
		Config:   config.OTPConfig{Length: 6, TTL: 5 * time.Minute, AttemptLimit: 5, AttemptWindow: 5 * time.Minute},
		Now:      h.clock.now,
	})
	require.NoError(t, err)
	h.gate = gate

	engine, err := fraud.NewEngine(fraud.EngineParams{
		Repo:    fraud.NewRepository(conn),
		Issuer:  gate,
		Emitter: emitter,
		Thresholds: fraud.Thresholds{
			StepUp:       decimal.NewFromInt(10000),
			LargeDeposit: decimal.NewFromInt(5000),
			BurstWindow:  10 * time.Second,
			BurstCount:   5,
			MLHighRisk:   0.75,
		},
		Now: h.clock.now,
	})
	require.NoError(t, err)

	h.ledger, err = ledger.NewService(client, accountsRepo, ledgerRepo, eventsRepo, engine)
	require.NoError(t, err)

	executor, err := ledger.NewExecutor(accountsRepo, ledgerRepo)
	require.NoError(t, err)

	h.dispatcher, err = New(Params{
		DB:         client,
		Events:     eventsRepo,
		Executor:   executor,
		Engine:     engine,
		Scorer:     h.scorer,
		Challenges: gate,
		Audit:      audit.NewRepository(conn),
		Emitter:    emitter,
		Deferral:   DeferralPolicy{Base: time.Minute, Max: time.Hour, Limit: 10},
		Metrics:    h.metrics,
	})
	require.NoError(t, err)
	h.dispatcher.now = h.clock.now
	return h
}

func (h *harness) openAccount(t *testing.T, number string, balance int64) models.Account {
	t.Helper()
	account := models.Account{
		UserID:        h.owner,
		AccountNumber: number,
		AccountType:   enums.AccountTypeSavings,
		Balance:       decimal.NewFromInt(balance),
	}
	require.NoError(t, h.conn.Create(&account).Error)
	return account
}

func (h *harness) step(t *testing.T) Outcome {
	t.Helper()
	outcome, err := h.dispatcher.Step(context.Background())
	require.NoError(t, err)
	return outcome
}

func (h *harness) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var account models.Account
	require.NoError(t, h.conn.First(&account, "id = ?", id).Error)
	return account.Balance
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (h *harness) challengeFor(t *testing.T, eventID uuid.UUID) models.OTPRequest {
	t.Helper()
	var challenge models.OTPRequest
	require.NoError(t, h.conn.Where("event_id = ?", eventID).Order("created_at DESC").First(&challenge).Error)
	return challenge
}

func (h *harness) auditLines(t *testing.T, eventID uuid.UUID) []string {
	t.Helper()
	rows, err := audit.NewRepository(h.conn).ListByEvent(context.Background(), eventID)
	require.NoError(t, err)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.Info)
	}
	return lines
}

func TestHighValueWithdrawalWaitsForOTP(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000001", 20000)
	ctx := context.Background()

	res, err := h.ledger.Withdraw(ctx, ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(15000)})
	require.NoError(t, err)
	require.True(t, res.OTPRequired)

	assert.Equal(t, OutcomeParked, h.step(t))
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(20000)), "no debit before verification")
	assert.EqualValues(t, 1, h.count(t, &models.OTPRequest{}, "event_id = ?", res.EventID))
	assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "event_id = ? AND reason = ? AND severity = ?",
		res.EventID, enums.AlertReasonHighValueWithdrawal, enums.AlertSeverityCritical))
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOTPChallengeIssued))

	assert.Equal(t, OutcomeIdle, h.step(t), "parked event is not claimable")

	challenge := h.challengeFor(t, res.EventID)
	result, err := h.gate.Verify(ctx, otp.VerifyParams{RequestID: challenge.ID, Code: challenge.Code, UserID: h.owner})
	require.NoError(t, err)
	require.Equal(t, otp.ResultSuccess, result)

	assert.Equal(t, OutcomeExecuted, h.step(t))
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(5000)))
	assert.EqualValues(t, 1, h.count(t, &models.Transaction{}, "account_id = ? AND type = ?", acc.ID, enums.TransactionTypeWithdraw))
	assert.Equal(t, []string{"Executed withdraw 15000.00 after OTP verification"}, h.auditLines(t, res.EventID))
	assert.EqualValues(t, 0, h.count(t, &models.TransactionEvent{}, "id = ?", res.EventID))
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventWithdrawalExecuted))

	result, err = h.gate.Verify(ctx, otp.VerifyParams{RequestID: challenge.ID, Code: challenge.Code, UserID: h.owner})
	require.NoError(t, err)
	assert.Equal(t, otp.ResultAlreadyVerified, result)
	assert.Equal(t, OutcomeIdle, h.step(t))
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(5000)), "double verify must not debit twice")
}

func TestLargeDepositCompletesWithAdvisoryAlert(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000002", 0)

	res, err := h.ledger.Deposit(context.Background(), ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(6000)})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, h.step(t))
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(6000)))
	assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "event_id = ? AND reason = ? AND severity = ?",
		res.EventID, enums.AlertReasonLargeDeposit, enums.AlertSeverityHigh))
	assert.Equal(t, []string{"Completed deposit 6000.00"}, h.auditLines(t, res.EventID))
	assert.EqualValues(t, 0, h.count(t, &models.TransactionEvent{}, "id = ?", res.EventID))
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventTransactionCompleted))
	assert.EqualValues(t, 1, h.count(t, &models.FraudScore{}, "event_id = ?", res.EventID))
	assert.EqualValues(t, 1, atomic.LoadInt32(&h.scorer.calls))
	assert.Equal(t, OutcomeIdle, h.step(t))
}

func TestBurstActivityRaisesMediumAlert(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000003", 0)

	eventIDs := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		res, err := h.ledger.Deposit(context.Background(), ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(10)})
		require.NoError(t, err)
		eventIDs = append(eventIDs, res.EventID)
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, OutcomeCompleted, h.step(t))
	}

	for _, id := range eventIDs {
		assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "event_id = ? AND reason = ? AND severity = ?",
			id, enums.AlertReasonBurstActivity, enums.AlertSeverityMedium), "event %s", id)
	}
	assert.EqualValues(t, len(eventIDs), h.count(t, &models.FraudAlert{}, "account_id = ? AND reason = ?", acc.ID, enums.AlertReasonBurstActivity))
	assert.EqualValues(t, 0, h.count(t, &models.TransactionEvent{}, "account_id = ?", acc.ID))
}

func TestBurstAlertIsNotDuplicatedAfterRollback(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000010", 0)
	ctx := context.Background()
	deposit := func() uuid.UUID {
		res, err := h.ledger.Deposit(ctx, ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(10)})
		require.NoError(t, err)
		return res.EventID
	}

	for i := 0; i < 4; i++ {
		id := deposit()
		assert.Equal(t, OutcomeCompleted, h.step(t))
		assert.EqualValues(t, 0, h.count(t, &models.FraudAlert{}, "event_id = ?", id), "below the burst count")
	}

	fifth := deposit()
	require.NoError(t, h.conn.Migrator().DropTable(&models.AuditLog{}))
	_, err := h.dispatcher.Step(ctx)
	require.Error(t, err)
	assert.EqualValues(t, 0, h.count(t, &models.FraudAlert{}, "event_id = ?", fifth), "alert rolled back with the step")
	assert.EqualValues(t, 1, h.count(t, &models.TransactionEvent{}, "id = ?", fifth))

	require.NoError(t, h.conn.AutoMigrate(&models.AuditLog{}))
	h.dispatcher.deferred.clear(fifth)
	assert.Equal(t, OutcomeCompleted, h.step(t))

	assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "event_id = ? AND reason = ?", fifth, enums.AlertReasonBurstActivity))
	assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "account_id = ?", acc.ID))
	assert.Equal(t, []string{"Completed deposit 10.00"}, h.auditLines(t, fifth))
}

func TestWaitingStepsReportQueueDepth(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000011", 20000)
	ctx := context.Background()

	assert.Equal(t, OutcomeIdle, h.step(t))

	_, err := h.ledger.Withdraw(ctx, ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(15000)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeParked, h.step(t))

	_, err = h.ledger.Deposit(ctx, ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, h.step(t))
	assert.Equal(t, OutcomeIdle, h.step(t))

	assert.Equal(t, []int64{0, 1, 1}, h.metrics.queueDepths(), "parked event stays counted; completed steps are not sampled")
	assert.Equal(t, []string{"idle", "parked", "completed", "idle"}, h.metrics.outcomes)
}

func TestScorerUnavailableFallsBackToRules(t *testing.T) {
	h := newHarness(t)
	h.scorer.set(0, false)
	acc := h.openAccount(t, "AC2000000004", 100)

	res, err := h.ledger.Deposit(context.Background(), ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(6000)})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, h.step(t))
	assert.EqualValues(t, 0, h.count(t, &models.FraudScore{}, "event_id = ?", res.EventID))
	assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "event_id = ? AND reason = ?", res.EventID, enums.AlertReasonLargeDeposit))
}

func TestHighScoreRaisesMLAlert(t *testing.T) {
	h := newHarness(t)
	h.scorer.set(0.9, true)
	acc := h.openAccount(t, "AC2000000005", 100)

	res, err := h.ledger.Withdraw(context.Background(), ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, h.step(t))
	assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "event_id = ? AND reason = ? AND severity = ?",
		res.EventID, enums.AlertReasonMLHighRisk, enums.AlertSeverityCritical))
}

func TestExpiredChallengeIsReissuedWithoutDuplicateAlert(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000006", 20000)

	res, err := h.ledger.Withdraw(context.Background(), ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(12000)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeParked, h.step(t))
	first := h.challengeFor(t, res.EventID)

	h.clock.advance(6 * time.Minute)
	assert.Equal(t, OutcomeParked, h.step(t))

	assert.EqualValues(t, 2, h.count(t, &models.OTPRequest{}, "event_id = ?", res.EventID))
	assert.NotEqual(t, first.ID, h.challengeFor(t, res.EventID).ID)
	assert.EqualValues(t, 1, h.count(t, &models.FraudAlert{}, "event_id = ? AND reason = ?", res.EventID, enums.AlertReasonHighValueWithdrawal))
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(20000)))
}

func TestInsufficientFundsAtExecutionDefersEvent(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000007", 20000)
	ctx := context.Background()

	gated, err := h.ledger.Withdraw(ctx, ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(15000)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeParked, h.step(t))

	_, err = h.ledger.Withdraw(ctx, ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(10000)})
	require.NoError(t, err)

	challenge := h.challengeFor(t, gated.EventID)
	result, err := h.gate.Verify(ctx, otp.VerifyParams{RequestID: challenge.ID, Code: challenge.Code, UserID: h.owner})
	require.NoError(t, err)
	require.Equal(t, otp.ResultSuccess, result)

	outcome, err := h.dispatcher.Step(ctx)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(10000)))
	assert.EqualValues(t, 1, h.count(t, &models.TransactionEvent{}, "id = ? AND is_otp_verified = ?", gated.EventID, true))
	assert.Empty(t, h.auditLines(t, gated.EventID))

	assert.Equal(t, OutcomeCompleted, h.step(t), "later events keep flowing past the deferred one")
	assert.Equal(t, OutcomeIdle, h.step(t))

	h.clock.advance(2 * time.Minute)
	_, err = h.dispatcher.Step(ctx)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds, "retried after the hold expires")
}

func TestConcurrentStepsNeverDoubleProcess(t *testing.T) {
	h := newHarness(t)
	acc := h.openAccount(t, "AC2000000008", 0)
	const queued = 12
	for i := 0; i < queued; i++ {
		_, err := h.ledger.Deposit(context.Background(), ledger.MutationInput{UserID: h.owner, AccountID: acc.ID, Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
	}

	var completed int32
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				outcome, err := h.dispatcher.Step(context.Background())
				if err != nil {
					t.Errorf("step: %v", err)
					return
				}
				if outcome == OutcomeIdle {
					return
				}
				if outcome == OutcomeCompleted {
					atomic.AddInt32(&completed, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, queued, completed)
	assert.EqualValues(t, queued, h.count(t, &models.AuditLog{}, "1 = 1"))
	assert.EqualValues(t, queued, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventTransactionCompleted))
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(queued)))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
}
