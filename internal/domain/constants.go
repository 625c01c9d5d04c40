package domain

// Account statuses.
const (
	AccountStatusActive    = "active"
	AccountStatusSuspended = "suspended"
	AccountStatusClosed    = "closed"
)

// Transaction kinds. TxKindTransfer is modelled but no ledger operation produces it.
const (
	TxKindDeposit    = "deposit"
	TxKindWithdrawal = "withdrawal"
	TxKindTransfer   = "transfer"
)

// Transaction statuses.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusReversed  = "reversed"
)

// Default descriptions used when the caller does not supply one.
const (
	DefaultDepositDescription        = "Deposit"
	DefaultWithdrawalDescription     = "Withdrawal"
	DefaultInitialDepositDescription = "Initial deposit"
)

// MaxPageSize bounds the limit accepted by transaction listings.
const MaxPageSize = 100

// IsValidKind reports whether kind is a known transaction kind.
func IsValidKind(kind string) bool {
	switch kind {
	case TxKindDeposit, TxKindWithdrawal, TxKindTransfer:
		return true
	}
	return false
}
