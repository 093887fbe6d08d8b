package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

// Transaction types
const (
	TransactionTypeSend             TransactionType = "send"
	TransactionTypeInternalTransfer TransactionType = "internal_transfer"
	TransactionTypeContractCall     TransactionType = "contract_call"
)

// Valid reports whether t is an accepted transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeSend, TransactionTypeInternalTransfer, TransactionTypeContractCall:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
	StatusExecuted TransactionStatus = "executed"
	StatusFailed   TransactionStatus = "failed"
)

var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusExecuted, StatusFailed},
}

// CanTransition reports whether the lifecycle allows moving from -> to.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further mutation is allowed in status s.
func (s TransactionStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusFailed
}

// MultiSigTransaction is an outgoing transfer awaiting (or past) quorum.
// RequiredApprovals is copied from the wallet at creation and never follows
// later quorum changes.
type MultiSigTransaction struct {
	ID                uint              `gorm:"primarykey" json:"id"`
	MultiSigWalletID  uint              `gorm:"not null;index" json:"multi_sig_wallet_id"`
	TransactionType   TransactionType   `gorm:"size:50;not null;index" json:"transaction_type"`
	TrxID             string            `gorm:"size:100;not null;uniqueIndex" json:"trx_id"`
	FromAddress       string            `gorm:"type:text;not null" json:"from_address"`
	ToAddress         string            `gorm:"type:text;not null" json:"to_address"`
	Amount            decimal.Decimal   `gorm:"type:decimal(28,8);not null" json:"amount"`
	Currency          string            `gorm:"size:10;not null" json:"currency"`
	Fee               decimal.Decimal   `gorm:"type:decimal(28,8);not null;default:0" json:"fee"`
	TransactionData   JSON              `gorm:"type:jsonb" json:"transaction_data,omitempty"`
	BlockchainTxnHash *string           `gorm:"type:text" json:"blockchain_txn_hash,omitempty"`
	RequiredApprovals int               `gorm:"not null" json:"required_approvals"`
	CurrentApprovals  int               `gorm:"not null;default:0" json:"current_approvals"`
	Status            TransactionStatus `gorm:"size:50;not null;default:'pending';index" json:"status"`
	InitiatedBy       uint              `gorm:"not null" json:"initiated_by"`
	InitiatorType     ActorKind         `gorm:"size:50;not null" json:"initiator_type"`
	InitiatedAt       *time.Time        `json:"initiated_at,omitempty"`
	ExecutedAt        *time.Time        `json:"executed_at,omitempty"`
	RejectionReason   *string           `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	Approvals []TransactionApproval `gorm:"foreignKey:MultiSigTransactionID;constraint:OnDelete:CASCADE" json:"approvals,omitempty"`
}

func (MultiSigTransaction) TableName() string { return "multi_sig_transactions" }

// Initiator returns who created the transaction.
func (t *MultiSigTransaction) Initiator() ActorRef {
	return ActorRef{Kind: t.InitiatorType, ID: t.InitiatedBy}
}

// Total is the amount debited from the wallet on execution.
func (t *MultiSigTransaction) Total() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}

// HasEnoughApprovals reports whether quorum is reached.
func (t *MultiSigTransaction) HasEnoughApprovals() bool {
	return t.CurrentApprovals >= t.RequiredApprovals
}

// CanBeExecuted reports whether execute is legal in the current state.
func (t *MultiSigTransaction) CanBeExecuted() bool {
	return t.Status == StatusApproved &&
		t.HasEnoughApprovals() &&
		t.ExecutedAt == nil
}

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// TransactionApproval records one signer's decision on a transaction. A
// signer gets exactly one row per transaction, whatever the action.
type TransactionApproval struct {
	ID                    uint           `gorm:"primarykey" json:"id"`
	MultiSigTransactionID uint           `gorm:"not null;uniqueIndex:unique_transaction_approval,priority:1" json:"multi_sig_transaction_id"`
	SignerID              uint           `gorm:"not null;uniqueIndex:unique_transaction_approval,priority:2" json:"signer_id"`
	SignerType            ActorKind      `gorm:"size:50;not null;uniqueIndex:unique_transaction_approval,priority:3" json:"signer_type"`
	Action                ApprovalAction `gorm:"size:20;not null" json:"action"`
	Signature             *string        `gorm:"type:text" json:"signature,omitempty"`
	Comment               *string        `gorm:"type:text" json:"comment,omitempty"`
	IPAddress             string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent             string         `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (TransactionApproval) TableName() string { return "transaction_approvals" }

// Signer returns who recorded the action.
func (a *TransactionApproval) Signer() ActorRef {
	return ActorRef{Kind: a.SignerType, ID: a.SignerID}
}
