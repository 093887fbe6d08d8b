package transaction_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/authorization"
	"github.com/LILIANSRL/chibank/internal/services/signer"
	"github.com/LILIANSRL/chibank/internal/services/transaction"
	"github.com/LILIANSRL/chibank/internal/services/wallet"
	"github.com/LILIANSRL/chibank/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	owner   = models.NewActor(models.ActorUser, 1)
	alice   = models.NewActor(models.ActorUser, 2)
	bob     = models.NewActor(models.ActorMerchant, 3)
	outside = models.NewActor(models.ActorUser, 9)
)

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, chain string, txn *models.MultiSigTransaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("0x%s-%s", chain, txn.TrxID), nil
}

type countingMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
}

func (c *countingMetrics) RecordOperation(string, string, time.Duration) {}

func (c *countingMetrics) RecordTransition(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transitions == nil {
		c.transitions = map[string]int{}
	}
	c.transitions[status]++
}

func (c *countingMetrics) count(status models.TransactionStatus) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitions[string(status)]
}

type fixture struct {
	db          *gorm.DB
	repos       *repositories.Repositories
	svc         transaction.Service
	broadcaster *fakeBroadcaster
	metrics     *countingMetrics
	wallet      *models.MultiSigWallet
}

func newFixture(t *testing.T, wf testutil.WalletFixture, mutate ...func(*transaction.Config)) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	ledger := approval.NewLedger(repos)
	gate := authorization.NewGate(signer.NewService(repos), ledger)

	f := &fixture{
		db:          db,
		repos:       repos,
		broadcaster: &fakeBroadcaster{},
		metrics:     &countingMetrics{},
		wallet:      testutil.CreateWallet(t, db, wf),
	}
	cfg := transaction.Config{
		Repos:       repos,
		Wallets:     wallet.NewService(repos, gate, nil, nil),
		Gate:        gate,
		Approvals:   ledger,
		Broadcaster: f.broadcaster,
		Metrics:     f.metrics,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.svc = transaction.NewService(cfg)
	return f
}

func sendRequest(amount, fee string) transaction.InitiateRequest {
	return transaction.InitiateRequest{
		TransactionType: string(models.TransactionTypeSend),
		ToAddress:       "0x000000000000000000000000000000000000dEaD",
		Amount:          decimal.RequireFromString(amount),
		Fee:             decimal.RequireFromString(fee),
		Memo:            "payroll",
	}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := f.repos.Wallets.GetByID(context.Background(), f.wallet.ID)
	require.NoError(t, err)
	return w.Balance
}

func TestFullApprovalFlow(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice, bob}, Required: 2, Balance: "100"})
	ctx := context.Background()

	txn, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("60", "5"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, txn.Status)
	assert.Equal(t, 2, txn.RequiredApprovals)
	assert.Equal(t, "ETH", txn.Currency)
	assert.Equal(t, "payroll", txn.TransactionData.String(transaction.DataMemo))
	assert.Regexp(t, `^MSIG\d+[0-9A-F]{8}$`, txn.TrxID)

	txn, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, alice, approval.Audit{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, txn.Status)
	assert.Equal(t, 1, txn.CurrentApprovals)
	assert.False(t, f.svc.CanBeExecuted(txn))

	txn, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, bob, approval.Audit{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, txn.Status)
	assert.Equal(t, 2, txn.CurrentApprovals)
	assert.Len(t, txn.Approvals, 2)
	assert.True(t, f.svc.CanBeExecuted(txn))

	txn, err = f.svc.Execute(ctx, f.wallet.ID, txn.ID, outside)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, txn.Status)
	require.NotNil(t, txn.BlockchainTxnHash)
	assert.Equal(t, "0xethereum-"+txn.TrxID, *txn.BlockchainTxnHash)
	assert.NotNil(t, txn.ExecutedAt)

	assert.True(t, decimal.NewFromInt(35).Equal(f.balance(t)), "balance %s", f.balance(t))
	assert.Equal(t, 1, f.metrics.count(models.StatusApproved))
	assert.Equal(t, 1, f.metrics.count(models.StatusExecuted))
}

func TestInitiateValidation(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice}, Required: 2, Balance: "100"})
	ctx := context.Background()

	tests := []struct {
		name  string
		actor models.ActorRef
		req   transaction.InitiateRequest
		want  error
	}{
		{"zero amount", owner, sendRequest("0", "0"), apperrors.ErrValidation},
		{"negative fee", owner, sendRequest("1", "-1"), apperrors.ErrValidation},
		{"unknown type", owner, transaction.InitiateRequest{TransactionType: "swap", ToAddress: "x", Amount: decimal.NewFromInt(1)}, apperrors.ErrValidation},
		{"signer without initiate", alice, sendRequest("1", "0"), apperrors.ErrAuthorization},
		{"outsider", outside, sendRequest("1", "0"), apperrors.ErrAuthorization},
		{"over balance", owner, sendRequest("96", "5"), apperrors.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Initiate(ctx, f.wallet.ID, tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.svc.Initiate(ctx, 999, owner, sendRequest("1", "0"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInitiateOnInactiveWallet(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Required: 1, Balance: "10"})
	require.NoError(t, f.repos.Wallets.UpdateStatus(context.Background(), f.wallet.ID, false))

	_, err := f.svc.Initiate(context.Background(), f.wallet.ID, owner, sendRequest("1", "0"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestInitiateRetriesReferenceCollision(t *testing.T) {
	refs := []string{"MSIG-1", "MSIG-1", "MSIG-1", "MSIG-2"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		r := refs[0]
		refs = refs[1:]
		return r
	}
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Required: 1, Balance: "10"},
		func(c *transaction.Config) { c.NewReference = next })
	ctx := context.Background()

	first, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("1", "0"))
	require.NoError(t, err)
	assert.Equal(t, "MSIG-1", first.TrxID)

	second, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("1", "0"))
	require.NoError(t, err)
	assert.Equal(t, "MSIG-2", second.TrxID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRejectIsTerminal(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice, bob}, Required: 2, Balance: "100"})
	ctx := context.Background()

	txn, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("10", "0"))
	require.NoError(t, err)

	txn, err = f.svc.Reject(ctx, f.wallet.ID, txn.ID, alice, "", approval.Audit{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, txn.Status)
	require.NotNil(t, txn.RejectionReason)
	assert.Equal(t, transaction.DefaultRejectionReason, *txn.RejectionReason)

	_, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, bob, approval.Audit{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.svc.Execute(ctx, f.wallet.ID, txn.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.True(t, decimal.NewFromInt(100).Equal(f.balance(t)))
}

func TestApproveRules(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice, bob}, Required: 3, Balance: "100"})
	ctx := context.Background()

	txn, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("10", "0"))
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, outside, approval.Audit{})
	assert.ErrorIs(t, err, apperrors.ErrAuthorization)

	_, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, alice, approval.Audit{})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, alice, approval.Audit{})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAction)

	_, err = f.svc.Reject(ctx, f.wallet.ID, txn.ID, alice, "changed my mind", approval.Audit{})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAction)

	_, err = f.svc.Approve(ctx, f.wallet.ID, 999, bob, approval.Audit{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Execute(ctx, f.wallet.ID, txn.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestExecuteTwiceDebitsOnce(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Required: 1, Balance: "50"})
	ctx := context.Background()

	txn, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("20", "1"))
	require.NoError(t, err)
	txn, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, owner, approval.Audit{})
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, txn.Status)

	_, err = f.svc.Execute(ctx, f.wallet.ID, txn.ID, owner)
	require.NoError(t, err)
	_, err = f.svc.Execute(ctx, f.wallet.ID, txn.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	assert.Equal(t, 1, f.broadcaster.calls)
	assert.True(t, decimal.NewFromInt(29).Equal(f.balance(t)))
}

func TestExecuteRechecksBalance(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Required: 1, Balance: "50"})
	ctx := context.Background()

	first, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("30", "0"))
	require.NoError(t, err)
	second, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("30", "0"))
	require.NoError(t, err)

	for _, id := range []uint{first.ID, second.ID} {
		_, err = f.svc.Approve(ctx, f.wallet.ID, id, owner, approval.Audit{})
		require.NoError(t, err)
	}

	_, err = f.svc.Execute(ctx, f.wallet.ID, first.ID, owner)
	require.NoError(t, err)

	_, err = f.svc.Execute(ctx, f.wallet.ID, second.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	got, err := f.svc.GetTransaction(ctx, f.wallet.ID, second.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.True(t, decimal.NewFromInt(20).Equal(f.balance(t)))
}

func TestBroadcastFailureRollsBack(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Required: 1, Balance: "50"})
	ctx := context.Background()
	f.broadcaster.err = errors.New("nonce too low")

	txn, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("10", "0"))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, owner, approval.Audit{})
	require.NoError(t, err)

	_, err = f.svc.Execute(ctx, f.wallet.ID, txn.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrExecutionFailed)

	got, err := f.svc.GetTransaction(ctx, f.wallet.ID, txn.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Nil(t, got.ExecutedAt)
	assert.True(t, decimal.NewFromInt(50).Equal(f.balance(t)))

	_, err = f.svc.MarkFailed(ctx, f.wallet.ID, txn.ID, outside, "stuck")
	assert.ErrorIs(t, err, apperrors.ErrAuthorization)

	failed, err := f.svc.MarkFailed(ctx, f.wallet.ID, txn.ID, owner, "stuck")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, "stuck", *failed.RejectionReason)

	_, err = f.svc.MarkFailed(ctx, f.wallet.ID, txn.ID, owner, "again")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestTransactionsAreScopedToWallet(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice}, Required: 1, Balance: "50"})
	other := testutil.CreateWallet(t, f.db, testutil.WalletFixture{Owner: outside, Required: 1, Balance: "50"})
	ctx := context.Background()

	txn, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("1", "0"))
	require.NoError(t, err)

	_, err = f.svc.GetTransaction(ctx, other.ID, txn.ID, outside)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Approve(ctx, other.ID, txn.ID, outside, approval.Audit{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.GetTransaction(ctx, f.wallet.ID, txn.ID, outside)
	assert.ErrorIs(t, err, apperrors.ErrAuthorization)

	got, err := f.svc.GetTransaction(ctx, f.wallet.ID, txn.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, txn.TrxID, got.TrxID)
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Required: 1, Balance: "50"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("1", "0"))
		require.NoError(t, err)
	}
	txns, total, err := f.svc.ListTransactions(ctx, f.wallet.ID, owner, transaction.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, txns, 2)

	_, err = f.svc.Approve(ctx, f.wallet.ID, txns[0].ID, owner, approval.Audit{})
	require.NoError(t, err)

	approved, total, err := f.svc.ListTransactions(ctx, f.wallet.ID, owner, transaction.ListFilter{Status: models.StatusApproved, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, approved, 1)

	_, _, err = f.svc.ListTransactions(ctx, f.wallet.ID, outside, transaction.ListFilter{})
	assert.ErrorIs(t, err, apperrors.ErrAuthorization)
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []models.TransactionStatus
	err      error
}

func (r *recordingNotifier) NotifyTransition(_ context.Context, txn *models.MultiSigTransaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, txn.Status)
	return 1, r.err
}

func TestTransitionsNotifySigners(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("mail relay down")}
	f := newFixture(t, testutil.WalletFixture{Owner: owner, Signers: []models.ActorRef{alice}, Required: 2, Balance: "10"},
		func(cfg *transaction.Config) { cfg.Notifier = notifier })
	ctx := context.Background()

	txn, err := f.svc.Initiate(ctx, f.wallet.ID, owner, sendRequest("1", "0"))
	require.NoError(t, err, "notifier errors do not fail the operation")
	_, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, owner, approval.Audit{})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.wallet.ID, txn.ID, alice, approval.Audit{})
	require.NoError(t, err)
	_, err = f.svc.Execute(ctx, f.wallet.ID, txn.ID, owner)
	require.NoError(t, err)

	assert.Equal(t, []models.TransactionStatus{
		models.StatusPending,
		models.StatusApproved,
		models.StatusExecuted,
	}, notifier.statuses)
}
