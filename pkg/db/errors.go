package db

import (
	"strings"

	pkgerrors "github.com/void1100/Bank-management-system/pkg/errors"
)

const sqlStateUniqueViolation = "23505"

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation from Postgres or sqlite. When constraintName is
// provided, the helper looks for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateUniqueViolation {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
