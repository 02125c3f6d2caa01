package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/backoff"
	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/eventbus"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/metrics"
	"github.com/void1100/Bank-management-system/pkg/outbox/registry"
)

const (
	publisherName  = "outbox-publisher"
	publishTimeout = 15 * time.Second
	retryBase      = time.Second
	idleJitter     = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxStore interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, ceiling int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type deduper interface {
	FirstDelivery(ctx context.Context, id uuid.UUID) (bool, error)
	Forget(ctx context.Context, id uuid.UUID) error
}

type publishMetrics interface {
	IncPublished(eventType string)
	IncFailed(eventType string)
	IncDeadLettered(reason string)
}

// ServiceParams wires the publisher. Dedupe and Metrics are optional.
type ServiceParams struct {
	Config  config.OutboxConfig
	Logger  *logger.Logger
	DB      txRunner
	Broker  eventbus.Publisher
	Store   outboxStore
	Routes  resolver
	Dedupe  deduper
	Metrics publishMetrics
}

// Service drains outbox_events to the broker. Each batch runs in one
// transaction that holds row locks, so replicas never publish the same row
// concurrently.
type Service struct {
	logg    *logger.Logger
	db      txRunner
	broker  eventbus.Publisher
	store   outboxStore
	routes  resolver
	dedupe  deduper
	metrics publishMetrics

	batchSize   int
	maxAttempts int
	poll        time.Duration
	retry       *backoff.Exponential
	sleep       func(context.Context, time.Duration) error
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Broker == nil:
		return nil, errors.New("broker publisher is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Routes == nil:
		return nil, errors.New("event routes are required")
	case p.Config.BatchSize <= 0 || p.Config.MaxAttempts <= 0 || p.Config.PollInterval <= 0:
		return nil, fmt.Errorf("batch size, max attempts and poll interval must be positive: %+v", p.Config)
	}
	m := p.Metrics
	if m == nil {
		m = metrics.NewOutboxMetrics(nil)
	}
	maxBackoff := max(p.Config.MaxBackoff, retryBase)
	return &Service{
		logg:        p.Logger,
		db:          p.DB,
		broker:      p.Broker,
		store:       p.Store,
		routes:      p.Routes,
		dedupe:      p.Dedupe,
		metrics:     m,
		batchSize:   p.Config.BatchSize,
		maxAttempts: p.Config.MaxAttempts,
		poll:        p.Config.PollInterval,
		retry:       &backoff.Exponential{Base: retryBase, Max: maxBackoff, Jitter: idleJitter},
		sleep:       backoff.Sleep,
	}, nil
}

// Run publishes until ctx is cancelled. A full batch is followed straight
// away by the next one; a short batch waits one poll interval.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.broker.Ping(ctx); err != nil {
		return fmt.Errorf("broker ping: %w", err)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"batch_size":   s.batchSize,
		"max_attempts": s.maxAttempts,
		"poll":         s.poll.String(),
	}), "outbox publisher started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.processBatch(ctx)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = s.retry.Next()
		case n >= s.batchSize:
			s.retry.Reset()
			continue
		default:
			s.retry.Reset()
			wait = s.poll + backoff.Jitter(idleJitter)
		}
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// processBatch handles up to batchSize rows and reports how many it claimed.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.store.ClaimBatch(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := s.handle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// handle publishes one row and records the result. Only bookkeeping failures
// are returned; publish failures become retries or dead letters.
func (s *Service) handle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    string(row.EventType),
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := s.routes.Resolve(row)
	if err == nil {
		logCtx = s.logg.WithField(logCtx, "topic", resolved.Route.Topic)
		err = s.publish(logCtx, row, resolved)
	}
	if err == nil {
		if err := s.store.MarkPublished(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		s.metrics.IncPublished(string(row.EventType))
		s.logg.Info(logCtx, "outbox.published")
		return nil
	}

	logCtx = s.logg.WithField(logCtx, "error", err.Error())
	reason, dead := classify(err, row.AttemptCount+1, s.maxAttempts)
	if !dead {
		if err := s.store.RecordFailure(tx, row.ID, err); err != nil {
			return fmt.Errorf("record %s failure: %w", row.ID, err)
		}
		s.metrics.IncFailed(string(row.EventType))
		s.logg.Warn(logCtx, "outbox.publish_failed")
		return nil
	}

	if err := s.store.DeadLetter(tx, row, reason, err, s.maxAttempts); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	s.metrics.IncDeadLettered(string(reason))
	s.logg.Warn(s.logg.WithField(logCtx, "dlq_reason", string(reason)), "outbox.dead_lettered")
	return nil
}

// classify decides whether a failed row is finished. attempt counts the
// failure just observed.
func classify(err error, attempt, maxAttempts int) (enums.OutboxDLQErrorReason, bool) {
	switch {
	case errors.Is(err, eventbus.ErrUnroutable):
		return enums.OutboxDLQReasonUnroutable, true
	case registry.IsPermanent(err):
		return enums.OutboxDLQReasonNonRetryable, true
	case attempt >= maxAttempts:
		return enums.OutboxDLQReasonMaxAttempts, true
	}
	return "", false
}

// publish sends row unless the delivery marker says an earlier attempt
// already did. The marker is cleared again when the broker rejects the row.
func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.Resolved) error {
	if s.dedupe != nil {
		first, err := s.dedupe.FirstDelivery(ctx, row.ID)
		if err != nil {
			return fmt.Errorf("delivery marker: %w", err)
		}
		if !first {
			s.logg.Info(ctx, "outbox.already_delivered")
			return nil
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err := s.broker.Publish(pubCtx, brokerMessage(row, resolved))
	if err != nil && s.dedupe != nil {
		if ferr := s.dedupe.Forget(ctx, row.ID); ferr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "marker_error", ferr.Error()), "outbox.marker_not_cleared")
		}
	}
	return err
}

// brokerMessage forwards the stored envelope unchanged, keyed by aggregate so
// every event about one transaction lands on the same partition.
func brokerMessage(row models.OutboxEvent, resolved *registry.Resolved) eventbus.Message {
	attrs := map[string]string{
		"event_id":       row.ID.String(),
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"occurred_at":    resolved.Envelope.OccurredAt.Format(time.RFC3339Nano),
	}
	if resolved.Envelope.Producer != "" {
		attrs["producer"] = resolved.Envelope.Producer
	}
	return eventbus.Message{
		Topic:      resolved.Route.Topic,
		Key:        row.AggregateID.String(),
		Data:       row.Payload,
		Attributes: attrs,
	}
}
