package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/LILIANSRL/chibank/internal/models"

	"gorm.io/gorm"
)

type SignerRepository interface {
	CreateBatch(ctx context.Context, signers []*models.WalletSigner) error
	// FindActive returns the active signer row for actor on the wallet.
	FindActive(ctx context.Context, walletID uint, actor models.ActorRef) (*models.WalletSigner, error)
	ListByWallet(ctx context.Context, walletID uint) ([]models.WalletSigner, error)
	SumActiveWeight(ctx context.Context, walletID uint) (int64, error)
	// BindPending attaches pending invitations for email to actor.
	BindPending(ctx context.Context, email string, actor models.ActorRef) (int64, error)
}

type signerRepository struct {
	db *gorm.DB
}

func NewSignerRepository(db *gorm.DB) SignerRepository {
	return &signerRepository{db: db}
}

func (r *signerRepository) CreateBatch(ctx context.Context, signers []*models.WalletSigner) error {
	if len(signers) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(signers).Error; err != nil {
		return fmt.Errorf("failed to create signers: %w", translate(err))
	}
	return nil
}

func (r *signerRepository) FindActive(ctx context.Context, walletID uint, actor models.ActorRef) (*models.WalletSigner, error) {
	var signer models.WalletSigner
	err := r.db.WithContext(ctx).
		Where("multi_sig_wallet_id = ? AND signer_id = ? AND signer_type = ? AND status = ?",
			walletID, actor.ID, actor.Kind, true).
		First(&signer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &signer, nil
}

func (r *signerRepository) ListByWallet(ctx context.Context, walletID uint) ([]models.WalletSigner, error) {
	var signers []models.WalletSigner
	err := r.db.WithContext(ctx).
		Where("multi_sig_wallet_id = ?", walletID).
		Order("is_owner DESC, id ASC").
		Find(&signers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list signers: %w", err)
	}
	return signers, nil
}

func (r *signerRepository) SumActiveWeight(ctx context.Context, walletID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletSigner{}).
		Where("multi_sig_wallet_id = ? AND status = ?", walletID, true).
		Select("COALESCE(SUM(weight), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum signer weight: %w", err)
	}
	return total, nil
}

func (r *signerRepository) BindPending(ctx context.Context, email string, actor models.ActorRef) (int64, error) {
	// Skip wallets the actor already signs on; binding would collide with
	// the unique signer index.
	signing := r.db.Model(&models.WalletSigner{}).
		Select("multi_sig_wallet_id").
		Where("signer_id = ? AND signer_type = ?", actor.ID, actor.Kind)

	result := r.db.WithContext(ctx).
		Model(&models.WalletSigner{}).
		Where("signer_id IS NULL AND signer_type = ? AND LOWER(signer_email) = ?",
			actor.Kind, strings.ToLower(strings.TrimSpace(email))).
		Where("multi_sig_wallet_id NOT IN (?)", signing).
		Update("signer_id", actor.ID)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to claim invitations: %w", translate(result.Error))
	}
	return result.RowsAffected, nil
}
