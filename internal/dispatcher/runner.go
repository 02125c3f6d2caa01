package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/void1100/Bank-management-system/pkg/backoff"
	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultErrorBackoff = time.Second
	defaultMaxBackoff   = 30 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type stepper interface {
	Step(ctx context.Context) (Outcome, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// RunnerParams groups runner dependencies.
type RunnerParams struct {
	Stepper stepper
	DB      pinger
	Logger  *logger.Logger
	Config  config.WorkerConfig
}

// Runner drives Step in a loop until the context is cancelled.
type Runner struct {
	step         stepper
	db           pinger
	logg         *logger.Logger
	pollInterval time.Duration
	retry        *backoff.Exponential
	sleepFn      func(ctx context.Context, d time.Duration) error
}

// NewRunner validates dependencies and applies defaults.
func NewRunner(p RunnerParams) (*Runner, error) {
	if p.Stepper == nil {
		return nil, errors.New("stepper is required")
	}
	if p.DB == nil {
		return nil, errors.New("database client is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	poll := p.Config.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	base := p.Config.ErrorBackoff
	if base <= 0 {
		base = defaultErrorBackoff
	}
	limit := p.Config.MaxBackoff
	if limit < base {
		limit = defaultMaxBackoff
	}
	return &Runner{
		step:         p.Stepper,
		db:           p.DB,
		logg:         p.Logger,
		pollInterval: poll,
		retry:        &backoff.Exponential{Base: base, Max: limit, Jitter: jitterWindow},
		sleepFn:      backoff.Sleep,
	}, nil
}

func (r *Runner) ensureReadiness(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		r.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Run loops on Step. Idle and parked steps wait one poll interval, resolved
// steps continue immediately and errors back off exponentially with jitter.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.ensureReadiness(ctx); err != nil {
		return err
	}
	r.logg.Info(r.logg.WithField(ctx, "poll_interval", r.pollInterval.String()), "dispatcher started")

	r.retry.Reset()
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "dispatcher context canceled")
			return ctx.Err()
		default:
		}

		outcome, err := r.step.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.sleepFn(ctx, r.retry.Next()); err != nil {
				return err
			}
			continue
		}
		r.retry.Reset()

		switch outcome {
		case OutcomeExecuted, OutcomeCompleted:
			continue
		case OutcomeIdle:
			r.logg.Debug(ctx, "dispatcher idle")
		}
		if err := r.sleepFn(ctx, r.pollInterval); err != nil {
			return err
		}
	}
}
