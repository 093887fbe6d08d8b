// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database. The pool is capped at
// one connection so transactions serialize the way row locks do on
// PostgreSQL, and every connection sees the same in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := repositories.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repositories.Migrate(db))
	return db
}

// CreateUser inserts an active user.
func CreateUser(t testing.TB, db *gorm.DB, username, email string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    email,
		Password: "x",
		Kind:     models.ActorUser,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// WalletFixture describes a wallet inserted directly, bypassing validation.
type WalletFixture struct {
	Owner    models.ActorRef
	Signers  []models.ActorRef
	Required int
	Balance  string
}

// CreateWallet inserts a wallet, an owner signer with every capability and
// one approving signer per entry in Signers.
func CreateWallet(t testing.TB, db *gorm.DB, f WalletFixture) *models.MultiSigWallet {
	t.Helper()
	if f.Balance == "" {
		f.Balance = "0"
	}
	walletType := models.WalletTypeSingle
	if len(f.Signers) > 0 {
		walletType = models.WalletTypeMultiSig
	}
	wallet := &models.MultiSigWallet{
		Name:               "fixture",
		WalletType:         walletType,
		OwnerID:            f.Owner.ID,
		OwnerType:          f.Owner.Kind,
		Blockchain:         "ethereum",
		CurrencyCode:       "ETH",
		RequiredSignatures: f.Required,
		TotalSigners:       len(f.Signers) + 1,
		Balance:            decimal.RequireFromString(f.Balance),
		Status:             true,
	}
	require.NoError(t, db.Omit("Signers", "Transactions").Create(wallet).Error)

	ownerID := f.Owner.ID
	signers := []*models.WalletSigner{{
		MultiSigWalletID: wallet.ID,
		SignerID:         &ownerID,
		SignerType:       f.Owner.Kind,
		SignerName:       "owner",
		SignerEmail:      "owner@example.com",
		Weight:           1,
		IsOwner:          true,
		CanInitiate:      true,
		CanApprove:       true,
		Status:           true,
	}}
	for _, s := range f.Signers {
		id := s.ID
		signers = append(signers, &models.WalletSigner{
			MultiSigWalletID: wallet.ID,
			SignerID:         &id,
			SignerType:       s.Kind,
			SignerName:       s.String(),
			SignerEmail:      s.String() + "@example.com",
			Weight:           1,
			CanApprove:       true,
			Status:           true,
		})
	}
	require.NoError(t, db.Create(signers).Error)
	return wallet
}
