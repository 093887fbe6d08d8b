package authorization_test

import (
	"context"
	"testing"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/authorization"
	"github.com/LILIANSRL/chibank/internal/services/signer"
	"github.com/LILIANSRL/chibank/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner   = models.NewActor(models.ActorUser, 1)
	alice   = models.NewActor(models.ActorUser, 2)
	outside = models.NewActor(models.ActorUser, 9)
)

func setup(t *testing.T) (*authorization.Gate, *repositories.Repositories, *models.MultiSigWallet, *models.MultiSigTransaction) {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	gate := authorization.NewGate(signer.NewService(repos), approval.NewLedger(repos))
	wallet := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice}, Required: 2})

	txn := &models.MultiSigTransaction{
		MultiSigWalletID: wallet.ID, TransactionType: models.TransactionTypeSend, TrxID: "MSIG-G",
		FromAddress: "a", ToAddress: "b", Amount: decimal.NewFromInt(1), Currency: "ETH",
		RequiredApprovals: 2, Status: models.StatusPending, InitiatedBy: owner.ID, InitiatorType: owner.Kind,
	}
	require.NoError(t, repos.Transactions.Create(context.Background(), txn))
	return gate, repos, wallet, txn
}

func TestCanInitiate(t *testing.T) {
	gate, _, wallet, _ := setup(t)
	ctx := context.Background()

	assert.NoError(t, gate.CanInitiate(ctx, wallet.ID, owner))

	err := gate.CanInitiate(ctx, wallet.ID, alice)
	assert.ErrorIs(t, err, apperrors.ErrAuthorization)
	assert.Contains(t, err.Error(), "initiate")
}

func TestCanActDeniesOutsidersAndRepeats(t *testing.T) {
	gate, repos, _, txn := setup(t)
	ctx := context.Background()

	err := gate.CanAct(ctx, txn, outside, models.ActionReject)
	assert.ErrorIs(t, err, apperrors.ErrAuthorization)
	assert.Contains(t, err.Error(), "reject")

	require.NoError(t, gate.CanAct(ctx, txn, alice, models.ActionApprove))
	require.NoError(t, repos.Approvals.Create(ctx, &models.TransactionApproval{
		MultiSigTransactionID: txn.ID, SignerID: alice.ID, SignerType: alice.Kind, Action: models.ActionApprove,
	}))

	assert.ErrorIs(t, gate.CanAct(ctx, txn, alice, models.ActionReject), apperrors.ErrDuplicateAction)
}

func TestCanExecuteChecksStateOnly(t *testing.T) {
	gate, _, _, txn := setup(t)

	assert.ErrorIs(t, gate.CanExecute(txn), apperrors.ErrInvalidState)

	txn.Status = models.StatusApproved
	txn.CurrentApprovals = 2
	assert.NoError(t, gate.CanExecute(txn))
}

func TestCanManageAndView(t *testing.T) {
	gate, _, wallet, _ := setup(t)
	ctx := context.Background()

	assert.NoError(t, gate.CanManage(wallet, owner))
	assert.ErrorIs(t, gate.CanManage(wallet, alice), apperrors.ErrAuthorization)

	assert.NoError(t, gate.CanView(ctx, wallet, owner))
	assert.NoError(t, gate.CanView(ctx, wallet, alice))
	assert.ErrorIs(t, gate.CanView(ctx, wallet, outside), apperrors.ErrAuthorization)
}
