package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/void1100/Bank-management-system/pkg/enums"
)

// EnvelopeVersion is bumped whenever the envelope shape changes.
const EnvelopeVersion = 1

// Envelope is what outbox_events.payload holds and what the broker receives.
// ID equals the outbox row id so consumers can dedupe on it.
type Envelope struct {
	Version    int                   `json:"version"`
	ID         uuid.UUID             `json:"id"`
	Type       enums.OutboxEventType `json:"type"`
	Producer   string                `json:"producer,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
	Data       json.RawMessage       `json:"data"`
}

var errEmptyData = errors.New("envelope has no data")

// DecodeEnvelope parses a stored payload and rejects envelopes without data.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, errEmptyData
	}
	return env, nil
}
