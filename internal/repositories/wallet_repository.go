package repositories

import (
	"context"
	"fmt"

	"github.com/LILIANSRL/chibank/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository defines the interface for wallet-related database operations
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.MultiSigWallet) error
	GetByID(ctx context.Context, id uint) (*models.MultiSigWallet, error)
	GetWithSigners(ctx context.Context, id uint) (*models.MultiSigWallet, error)
	// LockByID reads the wallet with SELECT ... FOR UPDATE. Only meaningful
	// inside ExecuteInTransaction.
	LockByID(ctx context.Context, id uint) (*models.MultiSigWallet, error)
	UpdateBalance(ctx context.Context, id uint, balance decimal.Decimal) error
	UpdateStatus(ctx context.Context, id uint, active bool) error
	ListByOwner(ctx context.Context, owner models.ActorRef, limit, offset int) ([]models.MultiSigWallet, int64, error)
	// Delete removes approvals, transactions, signers and the wallet.
	Delete(ctx context.Context, id uint) error
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.MultiSigWallet) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", translate(err))
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id uint) (*models.MultiSigWallet, error) {
	var wallet models.MultiSigWallet
	if err := r.db.WithContext(ctx).First(&wallet, id).Error; err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetWithSigners(ctx context.Context, id uint) (*models.MultiSigWallet, error) {
	var wallet models.MultiSigWallet
	err := r.db.WithContext(ctx).
		Preload("Signers", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_owner DESC, id ASC")
		}).
		First(&wallet, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

func (r *walletRepository) LockByID(ctx context.Context, id uint) (*models.MultiSigWallet, error) {
	var wallet models.MultiSigWallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

func (r *walletRepository) UpdateBalance(ctx context.Context, id uint, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.MultiSigWallet{}).
		Where("id = ?", id).
		Update("balance", balance)
	if result.Error != nil {
		return fmt.Errorf("failed to update balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *walletRepository) UpdateStatus(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.MultiSigWallet{}).
		Where("id = ?", id).
		Update("status", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *walletRepository) ListByOwner(ctx context.Context, owner models.ActorRef, limit, offset int) ([]models.MultiSigWallet, int64, error) {
	var (
		wallets []models.MultiSigWallet
		total   int64
	)
	base := r.db.WithContext(ctx).
		Model(&models.MultiSigWallet{}).
		Where("owner_id = ? AND owner_type = ?", owner.ID, owner.Kind)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count wallets: %w", err)
	}

	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND owner_type = ?", owner.ID, owner.Kind).
		Preload("Signers").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&wallets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, total, nil
}

func (r *walletRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)

	txIDs := db.Model(&models.MultiSigTransaction{}).
		Select("id").
		Where("multi_sig_wallet_id = ?", id)
	if err := db.Where("multi_sig_transaction_id IN (?)", txIDs).
		Delete(&models.TransactionApproval{}).Error; err != nil {
		return fmt.Errorf("failed to delete approvals: %w", err)
	}
	if err := db.Where("multi_sig_wallet_id = ?", id).
		Delete(&models.MultiSigTransaction{}).Error; err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	if err := db.Where("multi_sig_wallet_id = ?", id).
		Delete(&models.WalletSigner{}).Error; err != nil {
		return fmt.Errorf("failed to delete signers: %w", err)
	}

	result := db.Delete(&models.MultiSigWallet{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
