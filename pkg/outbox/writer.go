package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

// Event is a state change to announce once the surrounding transaction commits.
type Event struct {
	Type enums.OutboxEventType
	// Aggregate defaults to the transaction event aggregate.
	Aggregate   enums.OutboxAggregateType
	AggregateID uuid.UUID
	Data        any
	OccurredAt  time.Time
}

// Emitter queues events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event Event) error
}

// Writer is the Emitter backed by outbox_events.
type Writer struct {
	repo     *Repository
	producer string
	logg     *logger.Logger
	now      func() time.Time
}

func NewWriter(repo *Repository, producer string, logg *logger.Logger) *Writer {
	return &Writer{repo: repo, producer: producer, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

func (w *Writer) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("outbox emit needs a transaction")
	}
	row, err := w.build(event)
	if err != nil {
		return err
	}
	if err := w.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("insert outbox %s: %w", event.Type, err)
	}
	if w.logg != nil {
		w.logg.Debug(w.logg.WithFields(ctx, map[string]any{
			"outbox_id":    row.ID.String(),
			"event_type":   row.EventType,
			"aggregate_id": row.AggregateID.String(),
		}), "outbox.queued")
	}
	return nil
}

func (w *Writer) build(event Event) (*models.OutboxEvent, error) {
	if event.Aggregate == "" {
		event.Aggregate = enums.AggregateTransactionEvent
	}
	switch {
	case !event.Type.IsValid():
		return nil, fmt.Errorf("unknown outbox event type %q", event.Type)
	case !event.Aggregate.IsValid():
		return nil, fmt.Errorf("unknown aggregate type %q", event.Aggregate)
	case event.AggregateID == uuid.Nil:
		return nil, fmt.Errorf("%s: aggregate id required", event.Type)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event.Type, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = w.now()
	}
	env := Envelope{
		Version:    EnvelopeVersion,
		ID:         uuid.New(),
		Type:       event.Type,
		Producer:   w.producer,
		OccurredAt: occurred.UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return &models.OutboxEvent{
		ID:            env.ID,
		EventType:     event.Type,
		AggregateType: event.Aggregate,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, nil
}
