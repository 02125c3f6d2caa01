// Package registry maps outbox event types to broker topics and typed payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/db/models"
	"github.com/void1100/Bank-management-system/pkg/enums"
	"github.com/void1100/Bank-management-system/pkg/outbox"
	"github.com/void1100/Bank-management-system/pkg/outbox/payloads"
)

// PermanentError marks a row that will fail the same way on every attempt.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the publisher dead-letters instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Route is where one event type goes and how its data decodes.
type Route struct {
	Type      enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
	decode    func(json.RawMessage) (any, error)
}

// Resolved is a validated outbox row ready to publish.
type Resolved struct {
	Route    Route
	Envelope outbox.Envelope
	Payload  any
}

// Routes is the fixed routing table. Ledger outcomes go to the transaction
// topic and fraud signals to the fraud topic.
type Routes struct {
	byType map[enums.OutboxEventType]Route
}

func New(cfg config.EventingConfig) (*Routes, error) {
	txTopic, fraudTopic := strings.TrimSpace(cfg.Topic), strings.TrimSpace(cfg.FraudTopic)
	if txTopic == "" || fraudTopic == "" {
		return nil, fmt.Errorf("transaction and fraud topics are both required")
	}
	return &Routes{byType: index(
		route[payloads.TransactionCompletedEvent](enums.EventTransactionCompleted, txTopic),
		route[payloads.WithdrawalExecutedEvent](enums.EventWithdrawalExecuted, txTopic),
		route[payloads.FraudAlertRaisedEvent](enums.EventFraudAlertRaised, fraudTopic),
		route[payloads.OTPChallengeIssuedEvent](enums.EventOTPChallengeIssued, fraudTopic),
	)}, nil
}

func route[T any](typ enums.OutboxEventType, topic string) Route {
	return Route{
		Type:      typ,
		Aggregate: enums.AggregateTransactionEvent,
		Topic:     topic,
		decode: func(raw json.RawMessage) (any, error) {
			v := new(T)
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

func index(routes ...Route) map[enums.OutboxEventType]Route {
	m := make(map[enums.OutboxEventType]Route, len(routes))
	for _, r := range routes {
		m[r.Type] = r
	}
	return m
}

// Topics returns the distinct destinations, sorted.
func (r *Routes) Topics() []string {
	var topics []string
	for _, rt := range r.byType {
		if !slices.Contains(topics, rt.Topic) {
			topics = append(topics, rt.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks row against its route and decodes the payload. Every error
// it returns is permanent.
func (r *Routes) Resolve(row models.OutboxEvent) (*Resolved, error) {
	rt, ok := r.byType[row.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("no route for %s", row.EventType))
	case rt.Aggregate != row.AggregateType:
		return nil, Permanent(fmt.Errorf("%s expects aggregate %s, row has %s", row.EventType, rt.Aggregate, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, Permanent(fmt.Errorf("%s row %s has no aggregate id", row.EventType, row.ID))
	}

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload, err := rt.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s data: %w", row.EventType, err))
	}
	return &Resolved{Route: rt, Envelope: env, Payload: payload}, nil
}
