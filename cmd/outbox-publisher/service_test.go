package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db"
	"github.com/void1100/Bank-management-system/pkg/db/dbtest"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/eventbus"
	"github.com/void1100/Bank-management-system/pkg/logger"
	"github.com/void1100/Bank-management-system/pkg/outbox"
	"github.com/void1100/Bank-management-system/pkg/outbox/payloads"
	"github.com/void1100/Bank-management-system/pkg/outbox/registry"
)

type harness struct {
	conn    *gorm.DB
	repo    *outbox.Repository
	broker  *fakeBroker
	dedupe  *fakeDeduper
	metrics *fakeMetrics
	svc     *Service
}

func newHarness(t *testing.T, maxAttempts int) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	routes, err := registry.New(config.EventingConfig{Topic: "bank-transaction-events", FraudTopic: "bank-fraud-events"})
	require.NoError(t, err)

	h := &harness{
		conn:    conn,
		repo:    outbox.NewRepository(conn),
		broker:  &fakeBroker{},
		dedupe:  &fakeDeduper{seen: map[uuid.UUID]bool{}},
		metrics: &fakeMetrics{dead: map[string]int{}},
	}
	h.svc, err = NewService(ServiceParams{
		Config:  config.OutboxConfig{BatchSize: 10, PollInterval: time.Second, MaxAttempts: maxAttempts, MaxBackoff: 5 * time.Second},
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		DB:      db.NewFromConn(conn),
		Broker:  h.broker,
		Store:   h.repo,
		Routes:  routes,
		Dedupe:  h.dedupe,
		Metrics: h.metrics,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) emit(t *testing.T) models.OutboxEvent {
	t.Helper()
	w := outbox.NewWriter(h.repo, "worker:test", nil)
	aggregateID := uuid.New()
	require.NoError(t, h.conn.Transaction(func(tx *gorm.DB) error {
		return w.Emit(context.Background(), tx, outbox.Event{
			Type:        enums.EventTransactionCompleted,
			AggregateID: aggregateID,
			Data: payloads.TransactionCompletedEvent{
				EventID:   aggregateID,
				AccountID: uuid.New(),
				Type:      enums.EventTypeDeposit,
				Amount:    decimal.NewFromInt(250),
			},
		})
	}))
	var row models.OutboxEvent
	require.NoError(t, h.conn.Where("aggregate_id = ?", aggregateID).Take(&row).Error)
	return row
}

func (h *harness) reload(t *testing.T, id uuid.UUID) models.OutboxEvent {
	t.Helper()
	var row models.OutboxEvent
	require.NoError(t, h.conn.Where("id = ?", id).Take(&row).Error)
	return row
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	h := newHarness(t, 5)
	first, second := h.emit(t), h.emit(t)
	h.broker.errs = []error{errors.New("transient"), nil}

	n, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, b := h.reload(t, first.ID), h.reload(t, second.ID)
	failed, published := a, b
	if a.PublishedAt != nil {
		failed, published = b, a
	}
	assert.NotNil(t, published.PublishedAt)
	assert.Nil(t, failed.PublishedAt)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "transient", *failed.LastError)

	assert.Equal(t, 1, h.metrics.published)
	assert.Equal(t, 1, h.metrics.failed)
	assert.False(t, h.dedupe.seen[failed.ID], "marker must be cleared after a failed publish")
}

func TestPublishForwardsEnvelopeWithAttributes(t *testing.T) {
	h := newHarness(t, 5)
	row := h.emit(t)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.broker.sent, 1)

	msg := h.broker.sent[0]
	assert.Equal(t, "bank-transaction-events", msg.Topic)
	assert.Equal(t, row.AggregateID.String(), msg.Key)
	assert.JSONEq(t, string(row.Payload), string(msg.Data))
	assert.Equal(t, row.ID.String(), msg.Attributes["event_id"])
	assert.Equal(t, string(enums.EventTransactionCompleted), msg.Attributes["event_type"])
	assert.Equal(t, string(enums.AggregateTransactionEvent), msg.Attributes["aggregate_type"])
	assert.Equal(t, "worker:test", msg.Attributes["producer"])
	assert.NotEmpty(t, msg.Attributes["occurred_at"])
}

func TestBadRowIsDeadLetteredWithoutPublishing(t *testing.T) {
	h := newHarness(t, 5)
	row := models.OutboxEvent{
		EventType:     enums.EventTransactionCompleted,
		AggregateType: enums.AggregateAccount,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
	}
	require.NoError(t, h.repo.Insert(h.conn, &row))

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.broker.sent)

	entry, err := h.repo.FindDeadLetter(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, 5, h.reload(t, row.ID).AttemptCount)
	assert.Equal(t, 1, h.metrics.dead[string(enums.OutboxDLQReasonNonRetryable)])
}

func TestUnroutableTopicIsDeadLettered(t *testing.T) {
	h := newHarness(t, 5)
	row := h.emit(t)
	h.broker.errs = []error{fmt.Errorf("%w: missing topic", eventbus.ErrUnroutable)}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	entry, err := h.repo.FindDeadLetter(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonUnroutable, entry.ErrorReason)
}

func TestLastAttemptIsDeadLettered(t *testing.T) {
	h := newHarness(t, 2)
	row := h.emit(t)
	h.broker.errs = []error{errors.New("timeout"), errors.New("timeout")}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	entry, err := h.repo.FindDeadLetter(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = h.svc.processBatch(context.Background())
	require.NoError(t, err)
	entry, err = h.repo.FindDeadLetter(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)

	n, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "dead-lettered rows must not be claimed again")
}

func TestAlreadyDeliveredRowIsMarkedWithoutPublishing(t *testing.T) {
	h := newHarness(t, 5)
	row := h.emit(t)
	h.dedupe.seen[row.ID] = true

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.broker.sent)
	assert.NotNil(t, h.reload(t, row.ID).PublishedAt)
}

func TestRunStopsOnBrokerPingFailure(t *testing.T) {
	h := newHarness(t, 5)
	h.broker.pingErr = errors.New("unreachable")

	err := h.svc.Run(context.Background())
	require.ErrorContains(t, err, "broker ping")
}

func TestRunWaitsAfterShortBatch(t *testing.T) {
	h := newHarness(t, 5)
	h.emit(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var waits []time.Duration
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		cancel()
		return ctx.Err()
	}

	err := h.svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, waits, 1)
	assert.GreaterOrEqual(t, waits[0], time.Second)
	assert.Len(t, h.broker.sent, 1)
}

func TestClassify(t *testing.T) {
	reason, dead := classify(errors.New("flaky"), 1, 3)
	assert.False(t, dead)
	assert.Empty(t, reason)

	reason, dead = classify(errors.New("flaky"), 3, 3)
	assert.True(t, dead)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, reason)

	reason, _ = classify(registry.Permanent(errors.New("bad payload")), 1, 3)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, reason)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

type fakeBroker struct {
	sent    []eventbus.Message
	errs    []error
	pingErr error
}

func (f *fakeBroker) Publish(_ context.Context, msg eventbus.Message) error {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeBroker) Ping(context.Context) error { return f.pingErr }

func (f *fakeBroker) Close() error { return nil }

type fakeDeduper struct {
	seen map[uuid.UUID]bool
}

func (f *fakeDeduper) FirstDelivery(_ context.Context, id uuid.UUID) (bool, error) {
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

func (f *fakeDeduper) Forget(_ context.Context, id uuid.UUID) error {
	delete(f.seen, id)
	return nil
}

type fakeMetrics struct {
	published int
	failed    int
	dead      map[string]int
}

func (f *fakeMetrics) IncPublished(string) { f.published++ }

func (f *fakeMetrics) IncFailed(string) { f.failed++ }

func (f *fakeMetrics) IncDeadLettered(reason string) { f.dead[reason]++ }
