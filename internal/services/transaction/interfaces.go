package transaction

import (
	"context"

	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/services/approval"
)

// Service is the multi-signature transaction state machine.
//
//	pending -> approved -> executed
//	pending -> rejected
//	approved -> failed
type Service interface {
	Initiate(ctx context.Context, walletID uint, actor models.ActorRef, req InitiateRequest) (*models.MultiSigTransaction, error)
	Approve(ctx context.Context, walletID, txID uint, actor models.ActorRef, audit approval.Audit) (*models.MultiSigTransaction, error)
	Reject(ctx context.Context, walletID, txID uint, actor models.ActorRef, reason string, audit approval.Audit) (*models.MultiSigTransaction, error)
	// RecordAction is the shared path behind Approve and Reject.
	RecordAction(ctx context.Context, walletID, txID uint, actor models.ActorRef, action models.ApprovalAction, reason string, audit approval.Audit) (*models.MultiSigTransaction, error)
	CanBeExecuted(txn *models.MultiSigTransaction) bool
	Execute(ctx context.Context, walletID, txID uint, actor models.ActorRef) (*models.MultiSigTransaction, error)
	// MarkFailed resolves an approved transaction whose execution cannot
	// succeed. Owner only.
	MarkFailed(ctx context.Context, walletID, txID uint, actor models.ActorRef, reason string) (*models.MultiSigTransaction, error)

	GetTransaction(ctx context.Context, walletID, txID uint, actor models.ActorRef) (*models.MultiSigTransaction, error)
	ListTransactions(ctx context.Context, walletID uint, actor models.ActorRef, filter ListFilter) ([]models.MultiSigTransaction, int64, error)
}
