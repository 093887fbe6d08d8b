package walletauth_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LILIANSRL/chibank/internal/chain"
	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/walletauth"
	"github.com/LILIANSRL/chibank/internal/testutil"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeTokens struct{}

func (fakeTokens) GenerateTokens(c *models.UserClaims) (string, string, error) {
	return fmt.Sprintf("access-%d", c.UserID), fmt.Sprintf("refresh-%d", c.UserID), nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db    *gorm.DB
	repos *repositories.Repositories
	svc   walletauth.Service
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repositories.New(db)
	clk := &clock{now: time.Date(2024, 11, 18, 12, 0, 0, 0, time.UTC)}
	return &fixture{
		db:    db,
		repos: repos,
		clock: clk,
		svc: walletauth.NewService(walletauth.Config{
			Repos:     repos,
			Verifiers: chain.DefaultVerifiers(),
			Tokens:    fakeTokens{},
			Now:       clk.Now,
		}),
	}
}

type evmWallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newEVMWallet(t *testing.T) evmWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return evmWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w evmWallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func (f *fixture) nonce(t *testing.T, address, chainName string) *walletauth.NonceResponse {
	t.Helper()
	resp, err := f.svc.RequestNonce(context.Background(), walletauth.NonceRequest{Address: address, Chain: chainName, Provider: "metamask"})
	require.NoError(t, err)
	return resp
}

func TestRequestNonce(t *testing.T) {
	f := newFixture(t)
	w := newEVMWallet(t)

	first := f.nonce(t, w.address, "Ethereum")
	assert.Len(t, first.Nonce, 32)
	assert.Equal(t, walletauth.MessagePrefix+first.Nonce, first.Message)
	assert.Equal(t, f.clock.Now().Add(walletauth.DefaultNonceTTL), first.ExpiresAt)

	second := f.nonce(t, w.address, "ethereum")
	assert.NotEqual(t, first.Nonce, second.Nonce)

	stored, err := f.repos.WalletAuths.LockByAddress(context.Background(), strings.ToLower(w.address), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, second.Nonce, *stored.Nonce)

	_, err = f.svc.RequestNonce(context.Background(), walletauth.NonceRequest{Address: w.address, Chain: "dogecoin"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.RequestNonce(context.Background(), walletauth.NonceRequest{Chain: "ethereum"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVerifySignatureCreatesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := newEVMWallet(t)

	resp := f.nonce(t, w.address, "ethereum")
	sig := w.sign(t, resp.Message)
	session, err := f.svc.VerifySignature(ctx, walletauth.VerifyRequest{
		Address: w.address, Chain: "ethereum", Signature: sig, IPAddress: "10.0.0.7",
	})
	require.NoError(t, err)

	assert.Equal(t, "wallet_"+w.address[:10], session.User.Username)
	assert.Equal(t, "wallet_"+w.address[:10]+"@wallet.local", session.User.Email)
	require.NotNil(t, session.User.OAuthProvider)
	assert.Equal(t, models.OAuthProviderWallet, *session.User.OAuthProvider)
	assert.Equal(t, fmt.Sprintf("access-%d", session.User.ID), session.AccessToken)

	assert.True(t, session.Wallet.IsPrimary)
	assert.True(t, session.Wallet.IsVerified)
	assert.Nil(t, session.Wallet.Nonce)
	assert.Equal(t, strings.ToLower(w.address), session.Wallet.WalletAddress)

	// Replaying the same signature fails once the nonce is consumed.
	_, err = f.svc.VerifySignature(ctx, walletauth.VerifyRequest{Address: w.address, Chain: "ethereum", Signature: sig})
	assert.ErrorIs(t, err, apperrors.ErrExpiredNonce)

	// A second login reuses the linked user.
	resp = f.nonce(t, w.address, "ethereum")
	again, err := f.svc.VerifySignature(ctx, walletauth.VerifyRequest{Address: w.address, Chain: "ethereum", Signature: w.sign(t, resp.Message)})
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, again.User.ID)
}

func TestVerifySignatureExpiredNonce(t *testing.T) {
	f := newFixture(t)
	w := newEVMWallet(t)

	resp := f.nonce(t, w.address, "ethereum")
	f.clock.Advance(16 * time.Minute)

	_, err := f.svc.VerifySignature(context.Background(), walletauth.VerifyRequest{
		Address: w.address, Chain: "ethereum", Signature: w.sign(t, resp.Message),
	})
	assert.ErrorIs(t, err, apperrors.ErrExpiredNonce)

	_, err = f.svc.VerifySignature(context.Background(), walletauth.VerifyRequest{
		Address: newEVMWallet(t).address, Chain: "ethereum", Signature: "0x00",
	})
	assert.ErrorIs(t, err, apperrors.ErrExpiredNonce)
}

func TestVerifySignatureRejectsWrongSigner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := newEVMWallet(t)
	impostor := newEVMWallet(t)

	resp := f.nonce(t, w.address, "ethereum")
	_, err := f.svc.VerifySignature(ctx, walletauth.VerifyRequest{
		Address: w.address, Chain: "ethereum", Signature: impostor.sign(t, resp.Message),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	_, err = f.svc.VerifySignature(ctx, walletauth.VerifyRequest{
		Address: w.address, Chain: "ethereum", Signature: w.sign(t, resp.Message),
	})
	assert.NoError(t, err, "a failed attempt must not consume the nonce")
}

func TestVerifySignatureUsernameCollision(t *testing.T) {
	f := newFixture(t)
	w := newEVMWallet(t)
	testutil.CreateUser(t, f.db, "wallet_"+w.address[:10], "taken@example.com")

	resp := f.nonce(t, w.address, "ethereum")
	session, err := f.svc.VerifySignature(context.Background(), walletauth.VerifyRequest{
		Address: w.address, Chain: "ethereum", Signature: w.sign(t, resp.Message),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(session.User.Username, "wallet_"+w.address[:10]+"_"))
}

func TestVerifySolanaSignature(t *testing.T) {
	f := newFixture(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	address := base58.Encode(pub)

	resp := f.nonce(t, address, "solana")
	sig := base58.Encode(ed25519.Sign(priv, []byte(resp.Message)))

	session, err := f.svc.VerifySignature(context.Background(), walletauth.VerifyRequest{
		Address: address, Chain: "solana", Signature: sig, Provider: "phantom",
	})
	require.NoError(t, err)
	assert.Equal(t, "phantom", session.Wallet.WalletProvider)
	assert.Equal(t, address, session.Wallet.WalletAddress, "base58 keeps its case")
}

func TestSolanaAddressesAreCaseSensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upper := "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	lower := "4nd1mbqtrmjvyvfkf2pjy9nzuzdtasp7d4xwls4gdb4t"

	a := f.nonce(t, upper, "solana")
	b := f.nonce(t, lower, "solana")

	first, err := f.repos.WalletAuths.LockByAddress(ctx, upper, "solana")
	require.NoError(t, err)
	second, err := f.repos.WalletAuths.LockByAddress(ctx, lower, "solana")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, a.Nonce, *first.Nonce)
	assert.Equal(t, b.Nonce, *second.Nonce)
}

func TestLinkAndUnlinkWallets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	olivia := testutil.CreateUser(t, f.db, "olivia", "olivia@example.com").Actor()
	mallory := testutil.CreateUser(t, f.db, "mallory", "mallory@example.com").Actor()
	first, second := newEVMWallet(t), newEVMWallet(t)

	link := func(actor models.ActorRef, w evmWallet) (*models.WalletAuthentication, error) {
		resp := f.nonce(t, w.address, "polygon")
		return f.svc.LinkWallet(ctx, actor, walletauth.VerifyRequest{
			Address: w.address, Chain: "polygon", Signature: w.sign(t, resp.Message),
		})
	}

	a, err := link(olivia, first)
	require.NoError(t, err)
	assert.True(t, a.IsPrimary)

	_, err = link(mallory, first)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAction)

	err = f.svc.UnlinkWallet(ctx, olivia, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	b, err := link(olivia, second)
	require.NoError(t, err)
	assert.False(t, b.IsPrimary)

	linked, err := f.svc.LinkedWallets(ctx, olivia)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, a.ID, linked[0].ID)

	err = f.svc.UnlinkWallet(ctx, mallory, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, f.svc.UnlinkWallet(ctx, olivia, a.ID))
	linked, err = f.svc.LinkedWallets(ctx, olivia)
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestSweepExpiredNonces(t *testing.T) {
	f := newFixture(t)
	f.nonce(t, newEVMWallet(t).address, "ethereum")
	f.nonce(t, newEVMWallet(t).address, "bsc")

	n, err := f.svc.SweepExpiredNonces(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(walletauth.DefaultNonceTTL + time.Second)
	n, err = f.svc.SweepExpiredNonces(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

type countingSweeper struct {
	walletauth.Service
	calls atomic.Int32
}

func (c *countingSweeper) SweepExpiredNonces(context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestStartNonceSweeper(t *testing.T) {
	svc := &countingSweeper{}
	sched, err := walletauth.StartNonceSweeper(svc, 20*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	assert.Eventually(t, func() bool { return svc.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
