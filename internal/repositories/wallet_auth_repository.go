package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/LILIANSRL/chibank/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletAuthRepository interface {
	// SaveNonce inserts the (address, chain) row or refreshes its nonce.
	SaveNonce(ctx context.Context, auth *models.WalletAuthentication) (*models.WalletAuthentication, error)
	LockByAddress(ctx context.Context, address, chain string) (*models.WalletAuthentication, error)
	Save(ctx context.Context, auth *models.WalletAuthentication) error
	GetForUser(ctx context.Context, id uint, owner models.ActorRef) (*models.WalletAuthentication, error)
	ListByUser(ctx context.Context, owner models.ActorRef) ([]models.WalletAuthentication, error)
	CountPrimary(ctx context.Context, owner models.ActorRef) (int64, error)
	Delete(ctx context.Context, id uint) error
	ClearExpiredNonces(ctx context.Context, now time.Time) (int64, error)
}

type walletAuthRepository struct {
	db *gorm.DB
}

func NewWalletAuthRepository(db *gorm.DB) WalletAuthRepository {
	return &walletAuthRepository{db: db}
}

func (r *walletAuthRepository) SaveNonce(ctx context.Context, auth *models.WalletAuthentication) (*models.WalletAuthentication, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_address"}, {Name: "blockchain"}},
			DoUpdates: clause.AssignmentColumns([]string{"nonce", "nonce_expires_at", "wallet_provider", "updated_at"}),
		}).
		Create(auth).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save nonce: %w", err)
	}

	var stored models.WalletAuthentication
	err = r.db.WithContext(ctx).
		Where("wallet_address = ? AND blockchain = ?", auth.WalletAddress, auth.Blockchain).
		First(&stored).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *walletAuthRepository) LockByAddress(ctx context.Context, address, chain string) (*models.WalletAuthentication, error) {
	var auth models.WalletAuthentication
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_address = ? AND blockchain = ?", address, chain).
		First(&auth).Error
	if err != nil {
		return nil, translate(err)
	}
	return &auth, nil
}

func (r *walletAuthRepository) Save(ctx context.Context, auth *models.WalletAuthentication) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(auth).Error; err != nil {
		return fmt.Errorf("failed to save wallet authentication: %w", translate(err))
	}
	return nil
}

func (r *walletAuthRepository) GetForUser(ctx context.Context, id uint, owner models.ActorRef) (*models.WalletAuthentication, error) {
	var auth models.WalletAuthentication
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND user_type = ?", owner.ID, owner.Kind).
		First(&auth, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &auth, nil
}

func (r *walletAuthRepository) ListByUser(ctx context.Context, owner models.ActorRef) ([]models.WalletAuthentication, error) {
	var auths []models.WalletAuthentication
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND user_type = ? AND status = ?", owner.ID, owner.Kind, true).
		Order("is_primary DESC, last_login_at DESC").
		Find(&auths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list linked wallets: %w", err)
	}
	return auths, nil
}

func (r *walletAuthRepository) CountPrimary(ctx context.Context, owner models.ActorRef) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletAuthentication{}).
		Where("user_id = ? AND user_type = ? AND is_primary = ? AND status = ?", owner.ID, owner.Kind, true, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count primary wallets: %w", err)
	}
	return count, nil
}

func (r *walletAuthRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.WalletAuthentication{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete wallet authentication: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *walletAuthRepository) ClearExpiredNonces(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WalletAuthentication{}).
		Where("nonce IS NOT NULL AND nonce_expires_at < ?", now).
		Updates(map[string]interface{}{
			"nonce":            nil,
			"nonce_expires_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear expired nonces: %w", result.Error)
	}
	return result.RowsAffected, nil
}
