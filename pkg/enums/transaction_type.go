package enums

// TransactionType maps to transaction_type_enum, the kinds of ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdraw    TransactionType = "withdraw"
	TransactionTypeTransferIn  TransactionType = "transfer-in"
	TransactionTypeTransferOut TransactionType = "transfer-out"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypeWithdraw,
	TransactionTypeTransferIn,
	TransactionTypeTransferOut,
}

func (t TransactionType) IsValid() bool { return oneOf(t, validTransactionTypes) }

// IsCredit reports whether entries of this type increase the balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeTransferIn
}

func ParseTransactionType(value string) (TransactionType, error) {
	return parse("transaction type", value, validTransactionTypes)
}
