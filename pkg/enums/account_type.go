package enums

import "strings"

// AccountType maps to account_type_enum.
type AccountType string

const (
	AccountTypeSavings AccountType = "savings"
	AccountTypeCurrent AccountType = "current"
)

var validAccountTypes = []AccountType{AccountTypeSavings, AccountTypeCurrent}

func (a AccountType) IsValid() bool { return oneOf(a, validAccountTypes) }

// ParseAccountType accepts any casing and surrounding whitespace.
func ParseAccountType(value string) (AccountType, error) {
	return parse("account type", strings.ToLower(strings.TrimSpace(value)), validAccountTypes)
}
