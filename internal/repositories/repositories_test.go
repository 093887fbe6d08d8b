package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = models.NewActor(models.ActorUser, 1)
	alice = models.NewActor(models.ActorUser, 2)
	bob   = models.NewActor(models.ActorUser, 3)
)

func newPending(t *testing.T, repos *repositories.Repositories, walletID uint, required int, ref string) *models.MultiSigTransaction {
	t.Helper()
	txn := &models.MultiSigTransaction{
		MultiSigWalletID:  walletID,
		TransactionType:   models.TransactionTypeSend,
		TrxID:             ref,
		FromAddress:       "0xfrom",
		ToAddress:         "0xto",
		Amount:            decimal.NewFromInt(10),
		Currency:          "ETH",
		RequiredApprovals: required,
		Status:            models.StatusPending,
		InitiatedBy:       owner.ID,
		InitiatorType:     owner.Kind,
	}
	require.NoError(t, repos.Transactions.Create(context.Background(), txn))
	return txn
}

func TestIncrementApprovalsFlipsAtQuorum(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ctx := context.Background()
	wallet := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice}, Required: 2})
	txn := newPending(t, repos, wallet.ID, 2, "MSIG-1")

	n, err := repos.Transactions.IncrementApprovals(ctx, txn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repos.Transactions.GetByID(ctx, wallet.ID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentApprovals)
	assert.Equal(t, models.StatusPending, got.Status)

	n, err = repos.Transactions.IncrementApprovals(ctx, txn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err = repos.Transactions.GetByID(ctx, wallet.ID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentApprovals)
	assert.Equal(t, models.StatusApproved, got.Status)

	// No longer pending: the conditional update touches nothing.
	n, err = repos.Transactions.IncrementApprovals(ctx, txn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestTransitionsAreConditional(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ctx := context.Background()
	wallet := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Required: 1})
	txn := newPending(t, repos, wallet.ID, 1, "MSIG-2")

	n, err := repos.Transactions.MarkExecuted(ctx, txn.ID, "0xhash", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "pending cannot jump to executed")

	n, err = repos.Transactions.MarkRejected(ctx, txn.ID, "no")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repos.Transactions.MarkFailed(ctx, txn.ID, "boom")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err := repos.Transactions.GetByID(ctx, wallet.ID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "no", *got.RejectionReason)
}

func TestGetByIDScopedToWallet(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	w1 := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Required: 1})
	w2 := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Required: 1})
	txn := newPending(t, repos, w1.ID, 1, "MSIG-3")

	_, err := repos.Transactions.GetByID(context.Background(), w2.ID, txn.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestApprovalUniquePerSigner(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ctx := context.Background()
	wallet := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice}, Required: 2})
	txn := newPending(t, repos, wallet.ID, 2, "MSIG-4")

	first := &models.TransactionApproval{MultiSigTransactionID: txn.ID, SignerID: alice.ID, SignerType: alice.Kind, Action: models.ActionApprove}
	require.NoError(t, repos.Approvals.Create(ctx, first))

	again := &models.TransactionApproval{MultiSigTransactionID: txn.ID, SignerID: alice.ID, SignerType: alice.Kind, Action: models.ActionReject}
	assert.ErrorIs(t, repos.Approvals.Create(ctx, again), repositories.ErrDuplicate)

	exists, err := repos.Approvals.Exists(ctx, txn.ID, alice)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repos.Approvals.Exists(ctx, txn.ID, bob)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ctx := context.Background()
	wallet := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice}, Required: 2})
	txn := newPending(t, repos, wallet.ID, 2, "MSIG-5")
	require.NoError(t, repos.Approvals.Create(ctx, &models.TransactionApproval{
		MultiSigTransactionID: txn.ID, SignerID: alice.ID, SignerType: alice.Kind, Action: models.ActionApprove,
	}))

	err := repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		return tx.Wallets.Delete(ctx, wallet.ID)
	})
	require.NoError(t, err)

	for _, model := range []interface{}{
		&models.MultiSigWallet{}, &models.WalletSigner{}, &models.MultiSigTransaction{}, &models.TransactionApproval{},
	} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestExecuteInTransactionRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ctx := context.Background()
	wallet := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Required: 1, Balance: "100"})

	boom := errors.New("boom")
	err := repos.ExecuteInTransaction(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Wallets.UpdateBalance(ctx, wallet.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repos.Wallets.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
}

func TestBindPendingInvitations(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ctx := context.Background()
	wallet := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Required: 1})
	other := testutil.CreateWallet(t, db, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{bob}, Required: 1})

	for _, w := range []*models.MultiSigWallet{wallet, other} {
		require.NoError(t, repos.Signers.CreateBatch(ctx, []*models.WalletSigner{{
			MultiSigWalletID: w.ID, SignerType: models.ActorUser, SignerName: "Bob",
			SignerEmail: "Bob@Example.com", Weight: 1, CanApprove: true, Status: true,
		}}))
	}

	n, err := repos.Signers.BindPending(ctx, "bob@example.com", bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "bob already signs on the second wallet")

	signer, err := repos.Signers.FindActive(ctx, wallet.ID, bob)
	require.NoError(t, err)
	assert.False(t, signer.Pending())
}

func TestSaveNonceUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ctx := context.Background()

	save := func(nonce string) *models.WalletAuthentication {
		exp := time.Now().Add(time.Minute)
		auth, err := repos.WalletAuths.SaveNonce(ctx, &models.WalletAuthentication{
			WalletAddress: "0xabc", Blockchain: "ethereum", UserType: models.ActorUser,
			Nonce: &nonce, NonceExpiresAt: &exp, Status: true,
		})
		require.NoError(t, err)
		return auth
	}

	first := save("n1")
	second := save("n2")
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Nonce)
	assert.Equal(t, "n2", *second.Nonce)

	n, err := repos.WalletAuths.ClearExpiredNonces(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	locked, err := repos.WalletAuths.LockByAddress(ctx, "0xabc", "ethereum")
	require.NoError(t, err)
	assert.Nil(t, locked.Nonce)
}
