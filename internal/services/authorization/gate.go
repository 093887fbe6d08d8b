// Package authorization holds the checks run before every wallet and
// transaction mutation. Each denial names the action that was refused.
package authorization

import (
	"context"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/signer"
)

// Action names used in denials.
const (
	ActionInitiate = "initiate"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionExecute  = "execute"
	ActionManage   = "manage"
	ActionView     = "view"
)

type Gate struct {
	signers   signer.Service
	approvals approval.Ledger
}

func NewGate(signers signer.Service, approvals approval.Ledger) *Gate {
	if signers == nil {
		panic("signer service is required")
	}
	if approvals == nil {
		panic("approval ledger is required")
	}
	return &Gate{signers: signers, approvals: approvals}
}

// WithTx returns a Gate whose reads go through tx.
func (g *Gate) WithTx(tx *repositories.Repositories) *Gate {
	return &Gate{signers: g.signers.WithTx(tx), approvals: g.approvals.WithTx(tx)}
}

// CanInitiate requires an active signer with the initiate capability.
func (g *Gate) CanInitiate(ctx context.Context, walletID uint, actor models.ActorRef) error {
	ok, err := g.signers.CanInitiate(ctx, walletID, actor)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Authorization(ActionInitiate)
	}
	return nil
}

// CanAct requires an active signer with the approve capability who has not
// yet acted on txn. Approve and reject share the capability.
func (g *Gate) CanAct(ctx context.Context, txn *models.MultiSigTransaction, actor models.ActorRef, action models.ApprovalAction) error {
	name := ActionApprove
	if action == models.ActionReject {
		name = ActionReject
	}

	ok, err := g.signers.CanApprove(ctx, txn.MultiSigWalletID, actor)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Authorization(name)
	}

	acted, err := g.approvals.HasActed(ctx, txn.ID, actor)
	if err != nil {
		return err
	}
	if acted {
		return apperrors.DuplicateAction("signer has already acted on this transaction")
	}
	return nil
}

// CanExecute checks state only; any caller may execute an approved
// transaction.
func (g *Gate) CanExecute(txn *models.MultiSigTransaction) error {
	if !txn.CanBeExecuted() {
		return apperrors.InvalidState("transaction cannot be executed in status %s", txn.Status)
	}
	return nil
}

// CanManage requires the wallet owner.
func (g *Gate) CanManage(wallet *models.MultiSigWallet, actor models.ActorRef) error {
	if !wallet.IsOwner(actor) {
		return apperrors.Authorization(ActionManage)
	}
	return nil
}

// CanView allows the owner and active signers.
func (g *Gate) CanView(ctx context.Context, wallet *models.MultiSigWallet, actor models.ActorRef) error {
	if wallet.IsOwner(actor) {
		return nil
	}
	found, err := g.signers.FindSigner(ctx, wallet.ID, actor)
	if err != nil {
		return err
	}
	if found == nil {
		return apperrors.Authorization(ActionView)
	}
	return nil
}
