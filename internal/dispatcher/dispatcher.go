package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/internal/audit"
	"github.com/void1100/Bank-management-system/internal/events"
	"github.com/void1100/Bank-management-system/internal/fraud"
	"github.com/void1100/Bank-management-system/internal/ledger"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/outbox"
	"github.com/void1100/Bank-management-system/pkg/outbox/payloads"
)

// Outcome describes what a single step did.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"
	OutcomeParked    Outcome = "parked"
	OutcomeExecuted  Outcome = "executed"
	OutcomeCompleted Outcome = "completed"
)

const outcomeError = "error"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type withdrawalExecutor interface {
	ExecuteWithdrawal(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (*ledger.Execution, error)
}

type ruleEngine interface {
	Evaluate(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (fraud.Verdict, error)
	RecordScore(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent, score float64) (bool, error)
}

type challengeReader interface {
	Active(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.OTPRequest, error)
}

type stepMetrics interface {
	ObserveStep(outcome string, elapsed time.Duration)
	SetDeferred(n int)
	SetQueueDepth(n int64)
}

// Params groups the dispatcher dependencies. Metrics and Logger are optional.
type Params struct {
	DB         txRunner
	Events     events.Repository
	Executor   withdrawalExecutor
	Engine     ruleEngine
	Scorer     fraud.Scorer
	Challenges challengeReader
	Audit      audit.Repository
	Emitter    outbox.Emitter
	Logger     *logger.Logger
	Metrics    stepMetrics
	Deferral   DeferralPolicy
}

// Dispatcher resolves one queued transaction event per step.
type Dispatcher struct {
	db         txRunner
	events     events.Repository
	executor   withdrawalExecutor
	engine     ruleEngine
	scorer     fraud.Scorer
	challenges challengeReader
	audit      audit.Repository
	emitter    outbox.Emitter
	logg       *logger.Logger
	metrics    stepMetrics
	deferred   *deferrals
	now        func() time.Time
}

// New validates dependencies and returns a Dispatcher.
func New(p Params) (*Dispatcher, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Events == nil:
		return nil, errors.New("events repository is required")
	case p.Executor == nil:
		return nil, errors.New("withdrawal executor is required")
	case p.Engine == nil:
		return nil, errors.New("rule engine is required")
	case p.Scorer == nil:
		return nil, errors.New("fraud scorer is required")
	case p.Challenges == nil:
		return nil, errors.New("challenge reader is required")
	case p.Audit == nil:
		return nil, errors.New("audit repository is required")
	case p.Emitter == nil:
		return nil, errors.New("outbox emitter is required")
	}
	return &Dispatcher{
		db:         p.DB,
		events:     p.Events,
		executor:   p.Executor,
		engine:     p.Engine,
		scorer:     p.Scorer,
		challenges: p.Challenges,
		audit:      p.Audit,
		emitter:    p.Emitter,
		logg:       p.Logger,
		metrics:    p.Metrics,
		deferred:   newDeferrals(p.Deferral),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Step claims the oldest claimable event and resolves it inside one
// transaction. Any error rolls back every write of the step and holds the
// event back for a while so the rest of the queue keeps moving.
func (d *Dispatcher) Step(ctx context.Context) (Outcome, error) {
	start := d.now()
	exclude := d.deferred.active(start)

	outcome := OutcomeIdle
	var claimed *models.TransactionEvent
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		event, err := d.events.WithTx(tx).ClaimNext(ctx, start, exclude)
		if err != nil {
			return fmt.Errorf("claim event: %w", err)
		}
		if event == nil {
			return nil
		}
		claimed = event
		outcome, err = d.resolve(ctx, tx, event)
		return err
	})

	elapsed := d.now().Sub(start)
	if err != nil {
		if claimed != nil {
			d.deferred.fail(claimed.ID, d.now())
			d.reportDeferred()
			d.logFailure(ctx, claimed, err)
		}
		d.observe(outcomeError, elapsed)
		return OutcomeIdle, err
	}

	if claimed != nil && d.deferred.clear(claimed.ID) {
		d.reportDeferred()
	}
	d.observe(string(outcome), elapsed)
	if outcome == OutcomeIdle || outcome == OutcomeParked {
		d.reportQueueDepth(ctx)
	}
	if claimed != nil && d.logg != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"event_id":   claimed.ID.String(),
			"account_id": claimed.AccountID.String(),
			"event_type": string(claimed.Type),
			"outcome":    string(outcome),
		})
		d.logg.Info(logCtx, "transaction event processed")
	}
	return outcome, nil
}

func (d *Dispatcher) resolve(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (Outcome, error) {
	if event.IsOTPVerified && event.Type == enums.EventTypeWithdraw {
		return d.execute(ctx, tx, event)
	}

	active, err := d.challenges.Active(ctx, tx, event.ID)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("load active challenge: %w", err)
	}
	if active != nil && !event.IsOTPVerified {
		return OutcomeParked, nil
	}
	return d.evaluate(ctx, tx, event)
}

func (d *Dispatcher) execute(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (Outcome, error) {
	execution, err := d.executor.ExecuteWithdrawal(ctx, tx, event)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("execute withdrawal: %w", err)
	}
	if err := d.audit.WithTx(tx).Append(ctx, event.ID, audit.ExecutedWithdrawalInfo(event.Amount)); err != nil {
		return OutcomeIdle, fmt.Errorf("append audit: %w", err)
	}
	if err := d.emitter.Emit(ctx, tx, outbox.Event{
		Type:        enums.EventWithdrawalExecuted,
		AggregateID: event.ID,
		Data: payloads.WithdrawalExecutedEvent{
			EventID:       event.ID,
			AccountID:     event.AccountID,
			TransactionID: execution.Entry.ID,
			Amount:        event.Amount,
			BalanceAfter:  execution.BalanceAfter,
			ExecutedAt:    d.now(),
		},
	}); err != nil {
		return OutcomeIdle, fmt.Errorf("emit withdrawal executed: %w", err)
	}
	if err := d.events.WithTx(tx).Delete(ctx, event.ID); err != nil {
		return OutcomeIdle, fmt.Errorf("delete event: %w", err)
	}
	return OutcomeExecuted, nil
}

func (d *Dispatcher) evaluate(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (Outcome, error) {
	if score, ok := d.scorer.Score(ctx, fraud.ScoreRequest{
		Amount:    event.Amount,
		Type:      event.Type,
		AccountID: event.AccountID,
		Timestamp: event.CreatedAt,
	}); ok {
		if _, err := d.engine.RecordScore(ctx, tx, event, score); err != nil {
			return OutcomeIdle, err
		}
	}

	verdict, err := d.engine.Evaluate(ctx, tx, event)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("evaluate rules: %w", err)
	}
	if verdict.StepUp {
		return OutcomeParked, nil
	}

	if err := d.audit.WithTx(tx).Append(ctx, event.ID, audit.CompletedInfo(event.Type, event.Amount)); err != nil {
		return OutcomeIdle, fmt.Errorf("append audit: %w", err)
	}
	if err := d.emitter.Emit(ctx, tx, outbox.Event{
		Type:        enums.EventTransactionCompleted,
		AggregateID: event.ID,
		Data: payloads.TransactionCompletedEvent{
			EventID:     event.ID,
			AccountID:   event.AccountID,
			Type:        event.Type,
			Amount:      event.Amount,
			CompletedAt: d.now(),
		},
	}); err != nil {
		return OutcomeIdle, fmt.Errorf("emit transaction completed: %w", err)
	}
	if err := d.events.WithTx(tx).Delete(ctx, event.ID); err != nil {
		return OutcomeIdle, fmt.Errorf("delete event: %w", err)
	}
	return OutcomeCompleted, nil
}

func (d *Dispatcher) logFailure(ctx context.Context, event *models.TransactionEvent, err error) {
	if d.logg == nil {
		return
	}
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID.String(),
		"account_id": event.AccountID.String(),
		"event_type": string(event.Type),
	})
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "verified withdrawal no longer covered by balance")
	case !pkgerrors.Retryable(err):
		d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "transaction event rejected")
	default:
		d.logg.Error(logCtx, "transaction event step failed", err)
	}
}

func (d *Dispatcher) observe(outcome string, elapsed time.Duration) {
	if d.metrics != nil {
		d.metrics.ObserveStep(outcome, elapsed)
	}
}

// reportQueueDepth runs only before the loop waits, never per completed event.
func (d *Dispatcher) reportQueueDepth(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	depth, err := d.events.Pending(ctx)
	if err != nil {
		if d.logg != nil {
			d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "queue depth unavailable")
		}
		return
	}
	d.metrics.SetQueueDepth(depth)
}

func (d *Dispatcher) reportDeferred() {
	if d.metrics != nil {
		d.metrics.SetDeferred(d.deferred.size())
	}
}
