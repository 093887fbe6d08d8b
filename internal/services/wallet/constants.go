package wallet

// Operation names used for metrics and logs.
const (
	opCreate = "wallet.create"
	opCredit = "wallet.credit"
	opDebit  = "wallet.debit"
	opStatus = "wallet.status"
	opDelete = "wallet.delete"
)

// Volume directions
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// DefaultSignerWeight applies when an invitee has no explicit weight.
const DefaultSignerWeight = 1
