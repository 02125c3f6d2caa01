package enums

// EventType maps to event_type_enum on transaction_events.
type EventType string

const (
	EventTypeDeposit  EventType = "deposit"
	EventTypeWithdraw EventType = "withdraw"
	EventTypeTransfer EventType = "transfer"
)

var validEventTypes = []EventType{EventTypeDeposit, EventTypeWithdraw, EventTypeTransfer}

func (t EventType) IsValid() bool { return oneOf(t, validEventTypes) }

func ParseEventType(value string) (EventType, error) {
	return parse("event type", value, validEventTypes)
}
