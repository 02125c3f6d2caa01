package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model. sqlite-backed runs migrate from this list;
// Postgres uses the goose SQL migrations.
func All() []any {
	return []any{
		&User{},
		&Account{},
		&Transaction{},
		&TransactionEvent{},
		&OTPRequest{},
		&FraudAlert{},
		&FraudScore{},
		&AuditLog{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
