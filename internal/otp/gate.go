package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/internal/accounts"
	"github.com/void1100/Bank-management-system/internal/events"
	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/outbox"
	"github.com/void1100/Bank-management-system/pkg/outbox/payloads"
	pkgredis "github.com/void1100/Bank-management-system/pkg/redis"
)

// Result is the outcome of a verification attempt.
type Result string

const (
	ResultSuccess         Result = "success"
	ResultExpired         Result = "expired"
	ResultMismatch        Result = "mismatch"
	ResultNotFound        Result = "not_found"
	ResultAlreadyVerified Result = "already_verified"
	ResultForbidden       Result = "forbidden"
)

// VerifyParams identifies the challenge, the submitted code and the caller.
type VerifyParams struct {
	RequestID uuid.UUID
	Code      string
	UserID    uuid.UUID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gate issues and verifies per-event step-up challenges.
type Gate struct {
	tx       txRunner
	repo     Repository
	events   events.Repository
	accounts accounts.Repository
	limiter  pkgredis.RateLimiter
	emitter  outbox.Emitter
	logg     *logger.Logger
	cfg      config.OTPConfig
	now      func() time.Time
	newCode  func(length int) (string, error)
}

// GateParams groups the gate dependencies. Limiter and Now are optional.
type GateParams struct {
	Tx       txRunner
	Repo     Repository
	Events   events.Repository
	Accounts accounts.Repository
	Limiter  pkgredis.RateLimiter
	Emitter  outbox.Emitter
	Logger   *logger.Logger
	Config   config.OTPConfig
	Now      func() time.Time
}

// NewGate validates dependencies and returns a Gate.
func NewGate(p GateParams) (*Gate, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	if p.Events == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if p.Accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if p.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Config.Length <= 0 {
		return nil, fmt.Errorf("otp length must be positive")
	}
	if p.Config.TTL <= 0 {
		return nil, fmt.Errorf("otp ttl must be positive")
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Gate{
		tx:       p.Tx,
		repo:     p.Repo,
		events:   p.Events,
		accounts: p.Accounts,
		limiter:  p.Limiter,
		emitter:  p.Emitter,
		logg:     p.Logger,
		cfg:      p.Config,
		now:      now,
		newCode:  generateCode,
	}, nil
}

// Issue returns the event's active challenge, or creates one when none is
// active. created reports whether a new row was written.
func (g *Gate) Issue(ctx context.Context, tx *gorm.DB, event *models.TransactionEvent) (*models.OTPRequest, bool, error) {
	now := g.now()
	repo := g.repo.WithTx(tx)

	active, err := repo.FindActiveByEvent(ctx, event.ID, now)
	if err != nil {
		return nil, false, err
	}
	if active != nil {
		return active, false, nil
	}

	code, err := g.newCode(g.cfg.Length)
	if err != nil {
		return nil, false, fmt.Errorf("generate otp: %w", err)
	}
	challenge := &models.OTPRequest{
		EventID:   event.ID,
		AccountID: event.AccountID,
		Amount:    event.Amount,
		Code:      code,
		ExpiresAt: now.Add(g.cfg.TTL),
	}
	if err := repo.Create(ctx, challenge); err != nil {
		return nil, false, err
	}

	if err := g.emitter.Emit(ctx, tx, outbox.Event{
		Type:        enums.EventOTPChallengeIssued,
		AggregateID: event.ID,
		OccurredAt:  now,
		Data: payloads.OTPChallengeIssuedEvent{
			OTPRequestID: challenge.ID,
			EventID:      event.ID,
			AccountID:    event.AccountID,
			Amount:       event.Amount,
			ExpiresAt:    challenge.ExpiresAt,
		},
	}); err != nil {
		return nil, false, err
	}

	if g.logg != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"event_id":       event.ID.String(),
			"otp_request_id": challenge.ID.String(),
		})
		g.logg.Info(logCtx, "otp challenge issued")
	}
	return challenge, true, nil
}

// Active returns the event's unverified, unexpired challenge or nil.
func (g *Gate) Active(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.OTPRequest, error) {
	return g.repo.WithTx(tx).FindActiveByEvent(ctx, eventID, g.now())
}

// Verify checks a submitted code. Only ResultSuccess mutates state: it marks
// the challenge verified and flags the event for execution in one transaction.
func (g *Gate) Verify(ctx context.Context, p VerifyParams) (Result, error) {
	if p.RequestID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if p.Code == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "otp required")
	}

	if g.limiter != nil {
		allowed, _, err := g.limiter.FixedWindowAllow(ctx, pkgredis.OTPAttemptScope(p.RequestID.String()), g.cfg.AttemptLimit, g.cfg.AttemptWindow)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp attempt limiter unavailable")
		}
		if !allowed {
			return "", pkgerrors.New(pkgerrors.CodeRateLimit, "too many verification attempts")
		}
	}

	var result Result
	err := g.tx.WithTx(ctx, func(tx *gorm.DB) error {
		challenge, err := g.repo.WithTx(tx).LockByID(ctx, p.RequestID)
		if err != nil {
			return err
		}
		if challenge == nil {
			result = ResultNotFound
			return nil
		}

		account, err := g.accounts.WithTx(tx).FindByID(ctx, challenge.AccountID)
		if err != nil {
			return err
		}
		if account == nil || account.UserID != p.UserID {
			result = ResultForbidden
			return nil
		}

		now := g.now()
		switch {
		case challenge.IsVerified:
			result = ResultAlreadyVerified
			return nil
		case !challenge.IsActive(now):
			result = ResultExpired
			return nil
		case subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(p.Code)) != 1:
			result = ResultMismatch
			return nil
		}

		if err := g.repo.WithTx(tx).MarkVerified(ctx, challenge.ID, now); err != nil {
			return err
		}
		if err := g.events.WithTx(tx).MarkOTPVerified(ctx, challenge.EventID); err != nil {
			return err
		}
		result = ResultSuccess
		return nil
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify otp")
	}

	if g.logg != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"otp_request_id": p.RequestID.String(),
			"result":         string(result),
		})
		g.logg.Info(logCtx, "otp verification attempt")
	}
	return result, nil
}

// Pending lists the caller's active challenges, newest first.
func (g *Gate) Pending(ctx context.Context, userID uuid.UUID) ([]PendingChallenge, error) {
	rows, err := g.repo.ListPendingForUser(ctx, userID, g.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending otp challenges")
	}
	return rows, nil
}

// ResultError maps a non-success result onto the API error taxonomy.
func ResultError(result Result) error {
	switch result {
	case ResultSuccess:
		return nil
	case ResultNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "otp request not found")
	case ResultForbidden:
		return pkgerrors.New(pkgerrors.CodeForbidden, "otp request does not belong to user")
	case ResultExpired:
		return pkgerrors.New(pkgerrors.CodeValidation, "OTP expired").WithDetails(map[string]string{"reason": string(result)})
	case ResultAlreadyVerified:
		return pkgerrors.New(pkgerrors.CodeValidation, "OTP already verified").WithDetails(map[string]string{"reason": string(result)})
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "Incorrect OTP").WithDetails(map[string]string{"reason": string(result)})
	}
}

func generateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
