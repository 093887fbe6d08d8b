// Package approval records signer decisions on multi-signature
// transactions. Rows are append-only and a signer gets at most one per
// transaction.
package approval

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
)

// Audit carries request metadata stored with each decision.
type Audit struct {
	Signature string
	Comment   string
	IPAddress string
	UserAgent string
}

type Ledger interface {
	// Record appends a decision. A second decision by the same signer on the
	// same transaction fails with a duplicate-action error, whether it comes
	// from an earlier request or a concurrent one.
	Record(ctx context.Context, txn *models.MultiSigTransaction, signer models.ActorRef, action models.ApprovalAction, audit Audit) (*models.TransactionApproval, error)
	HasActed(ctx context.Context, transactionID uint, signer models.ActorRef) (bool, error)
	List(ctx context.Context, transactionID uint) ([]models.TransactionApproval, error)
	WithTx(tx *repositories.Repositories) Ledger
}

type ledger struct {
	repos *repositories.Repositories
}

func NewLedger(repos *repositories.Repositories) Ledger {
	if repos == nil {
		panic("repositories are required")
	}
	return &ledger{repos: repos}
}

func (l *ledger) WithTx(tx *repositories.Repositories) Ledger {
	return &ledger{repos: tx}
}

func (l *ledger) Record(ctx context.Context, txn *models.MultiSigTransaction, signer models.ActorRef, action models.ApprovalAction, audit Audit) (*models.TransactionApproval, error) {
	if action != models.ActionApprove && action != models.ActionReject {
		return nil, apperrors.Validation("unknown action %q", action)
	}

	row := &models.TransactionApproval{
		MultiSigTransactionID: txn.ID,
		SignerID:              signer.ID,
		SignerType:            signer.Kind,
		Action:                action,
		Signature:             optional(audit.Signature),
		Comment:               optional(audit.Comment),
		IPAddress:             audit.IPAddress,
		UserAgent:             audit.UserAgent,
	}
	if err := l.repos.Approvals.Create(ctx, row); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.DuplicateAction("signer has already acted on this transaction")
		}
		return nil, apperrors.Persistence("record approval", err)
	}
	return row, nil
}

func (l *ledger) HasActed(ctx context.Context, transactionID uint, signer models.ActorRef) (bool, error) {
	acted, err := l.repos.Approvals.Exists(ctx, transactionID, signer)
	if err != nil {
		return false, apperrors.Persistence("check approval", err)
	}
	return acted, nil
}

func (l *ledger) List(ctx context.Context, transactionID uint) ([]models.TransactionApproval, error) {
	rows, err := l.repos.Approvals.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, apperrors.Persistence("list approvals", err)
	}
	return rows, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
