package wallet

import (
	"context"

	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"

	"github.com/shopspring/decimal"
)

// Service defines the main wallet service interface
type Service interface {
	// Wallet management
	CreateWallet(ctx context.Context, owner models.ActorRef, req CreateWalletRequest) (*models.MultiSigWallet, error)
	GetWallet(ctx context.Context, walletID uint, actor models.ActorRef) (*models.MultiSigWallet, error)
	ListWallets(ctx context.Context, owner models.ActorRef, limit, offset int) ([]models.MultiSigWallet, int64, error)
	UpdateStatus(ctx context.Context, walletID uint, actor models.ActorRef, active bool) (*models.MultiSigWallet, error)
	DeleteWallet(ctx context.Context, walletID uint, actor models.ActorRef) error

	// Balance operations
	GetBalance(ctx context.Context, walletID uint) (decimal.Decimal, error)
	// Credit records funds received from outside the ledger. Operators
	// (admin actors) only; wallet signers cannot raise a balance.
	Credit(ctx context.Context, walletID uint, actor models.ActorRef, amount decimal.Decimal) (*models.MultiSigWallet, error)
	// Debit runs inside tx and never commits on its own. Call
	// InvalidateCache once the caller's transaction has committed.
	Debit(ctx context.Context, tx *repositories.Repositories, walletID uint, amount decimal.Decimal) (*models.MultiSigWallet, error)
	InvalidateCache(ctx context.Context, walletID uint)

	// Membership
	IsOwner(wallet *models.MultiSigWallet, actor models.ActorRef) bool
	IsActiveSigner(ctx context.Context, walletID uint, actor models.ActorRef) (bool, error)
}

// Cache is the wallet read-through cache.
type Cache interface {
	GetWallet(ctx context.Context, walletID uint) (*models.MultiSigWallet, bool, error)
	CacheWallet(ctx context.Context, wallet *models.MultiSigWallet) error
	InvalidateWallet(ctx context.Context, walletID uint) error
}
