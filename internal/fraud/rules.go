package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/outbox"
	"github.com/void1100/Bank-management-system/pkg/outbox/payloads"
)

// ChallengeIssuer creates or returns the step-up challenge for an event.
type ChallengeIssuer interface {
	Issue(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (*models.OTPRequest, bool, error)
}

// Verdict is the outcome of evaluating every rule against one event.
type Verdict struct {
	StepUp           bool
	Challenge        *models.OTPRequest
	ChallengeCreated bool
	Raised           []enums.AlertReason
}

// Thresholds are the parsed rule limits.
type Thresholds struct {
	StepUp       decimal.Decimal
	LargeDeposit decimal.Decimal
	BurstWindow  time.Duration
	BurstCount   int64
	MLHighRisk   float64
}

// ThresholdsFromConfig parses the fraud config into rule limits.
func ThresholdsFromConfig(cfg config.FraudConfig) (Thresholds, error) {
	stepUp, err := cfg.StepUpAmount()
	if err != nil {
		return Thresholds{}, err
	}
	largeDeposit, err := cfg.LargeDeposit()
	if err != nil {
		return Thresholds{}, err
	}
	return Thresholds{
		StepUp:       stepUp,
		LargeDeposit: largeDeposit,
		BurstWindow:  cfg.BurstWindow,
		BurstCount:   cfg.BurstCount,
		MLHighRisk:   cfg.MLThreshold,
	}, nil
}

// Engine applies the deterministic fraud rules and records alerts.
type Engine struct {
	repo       Repository
	issuer     ChallengeIssuer
	emitter    outbox.Emitter
	thresholds Thresholds
	logg       *logger.Logger
	onAlert    func(reason enums.AlertReason)
	now        func() time.Time
}

// EngineParams groups the engine dependencies. Issuer may be nil for callers
// that only need RequiresStepUp.
type EngineParams struct {
	Repo       Repository
	Issuer     ChallengeIssuer
	Emitter    outbox.Emitter
	Thresholds Thresholds
	Logger     *logger.Logger
	OnAlert    func(reason enums.AlertReason)
	Now        func() time.Time
}

// NewEngine validates dependencies and returns an Engine.
func NewEngine(p EngineParams) (*Engine, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("fraud repository required")
	}
	if p.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if !p.Thresholds.StepUp.IsPositive() {
		return nil, fmt.Errorf("step-up threshold must be positive")
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		repo:       p.Repo,
		issuer:     p.Issuer,
		emitter:    p.Emitter,
		thresholds: p.Thresholds,
		logg:       p.Logger,
		onAlert:    p.OnAlert,
		now:        now,
	}, nil
}

// RequiresStepUp is the gate predicate: withdrawals strictly above the step-up
// threshold need OTP verification before any debit.
func (e *Engine) RequiresStepUp(kind enums.EventType, amount decimal.Decimal) bool {
	return kind == enums.EventTypeWithdraw && amount.GreaterThan(e.thresholds.StepUp)
}

// Evaluate runs every rule in order. Re-evaluating the same event never
// duplicates alerts or challenges.
func (e *Engine) Evaluate(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (Verdict, error) {
	var verdict Verdict

	if e.RequiresStepUp(event.Type, event.Amount) {
		if e.issuer == nil {
			return verdict, fmt.Errorf("challenge issuer not configured")
		}
		challenge, created, err := e.issuer.Issue(ctx, tx, event)
		if err != nil {
			return verdict, fmt.Errorf("issue otp challenge: %w", err)
		}
		verdict.StepUp = true
		verdict.Challenge = challenge
		verdict.ChallengeCreated = created
		if created {
			if err := e.raise(ctx, tx, event, enums.AlertReasonHighValueWithdrawal, &verdict); err != nil {
				return verdict, err
			}
		}
	}

	if event.Type == enums.EventTypeDeposit && event.Amount.GreaterThan(e.thresholds.LargeDeposit) {
		if err := e.raise(ctx, tx, event, enums.AlertReasonLargeDeposit, &verdict); err != nil {
			return verdict, err
		}
	}

	if e.thresholds.BurstCount > 0 {
		since := e.now().Add(-e.thresholds.BurstWindow)
		count, err := e.repo.WithTx(tx).CountTransactionsSince(ctx, event.AccountID, since)
		if err != nil {
			return verdict, fmt.Errorf("count recent activity: %w", err)
		}
		if count >= e.thresholds.BurstCount {
			if err := e.raise(ctx, tx, event, enums.AlertReasonBurstActivity, &verdict); err != nil {
				return verdict, err
			}
		}
	}

	return verdict, nil
}

// RecordScore stores the model score and raises the ml_high_risk alert when it
// exceeds the configured threshold.
func (e *Engine) RecordScore(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent, score float64) (bool, error) {
	if err := e.repo.WithTx(tx).UpsertScore(ctx, &models.FraudScore{
		EventID:   event.ID,
		AccountID: event.AccountID,
		Score:     score,
	}); err != nil {
		return false, fmt.Errorf("upsert fraud score: %w", err)
	}
	if score <= e.thresholds.MLHighRisk {
		return false, nil
	}
	var verdict Verdict
	if err := e.raise(ctx, tx, event, enums.AlertReasonMLHighRisk, &verdict); err != nil {
		return false, err
	}
	return len(verdict.Raised) > 0, nil
}

func (e *Engine) raise(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent, reason enums.AlertReason, verdict *Verdict) error {
	alert := &models.FraudAlert{
		EventID:   event.ID,
		AccountID: event.AccountID,
		Reason:    reason,
		Severity:  reason.Severity(),
	}
	created, err := e.repo.WithTx(tx).InsertAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("insert %s alert: %w", reason, err)
	}
	if !created {
		return nil
	}

	if err := e.emitter.Emit(ctx, tx, outbox.Event{
		Type:        enums.EventFraudAlertRaised,
		AggregateID: event.ID,
		Data: payloads.FraudAlertRaisedEvent{
			AlertID:   alert.ID,
			EventID:   event.ID,
			AccountID: event.AccountID,
			Reason:    reason,
			Severity:  alert.Severity,
		},
	}); err != nil {
		return err
	}

	verdict.Raised = append(verdict.Raised, reason)
	if e.onAlert != nil {
		e.onAlert(reason)
	}
	if e.logg != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"account_id": event.AccountID.String(),
			"reason":     string(reason),
			"severity":   string(alert.Severity),
		})
		e.logg.Warn(logCtx, "fraud alert raised")
	}
	return nil
}
