package enums

// OutboxAggregateType names the entity an outbox row describes
// (aggregate_type_enum).
type OutboxAggregateType string

const (
	AggregateTransactionEvent OutboxAggregateType = "transaction_event"
	AggregateAccount          OutboxAggregateType = "account"
)

var validAggregateTypes = []OutboxAggregateType{AggregateTransactionEvent, AggregateAccount}

func (a OutboxAggregateType) IsValid() bool { return oneOf(a, validAggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, validAggregateTypes)
}

// OutboxEventType maps to outbox_event_type_enum. Each value has a route in
// the publisher registry.
type OutboxEventType string

const (
	EventTransactionCompleted OutboxEventType = "transaction_completed"
	EventWithdrawalExecuted   OutboxEventType = "withdrawal_executed"
	EventFraudAlertRaised     OutboxEventType = "fraud_alert_raised"
	EventOTPChallengeIssued   OutboxEventType = "otp_challenge_issued"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTransactionCompleted,
	EventWithdrawalExecuted,
	EventFraudAlertRaised,
	EventOTPChallengeIssued,
}

func (e OutboxEventType) IsValid() bool { return oneOf(e, validOutboxEventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("outbox event type", value, validOutboxEventTypes)
}

// OutboxDLQErrorReason records why a row was moved to outbox_dlq instead of
// being retried.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnroutable   OutboxDLQErrorReason = "unroutable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnroutable,
}

func (r OutboxDLQErrorReason) IsValid() bool { return oneOf(r, validOutboxDLQErrorReasons) }
