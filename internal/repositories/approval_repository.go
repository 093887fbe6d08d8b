package repositories

import (
	"context"
	"fmt"

	"github.com/LILIANSRL/chibank/internal/models"

	"gorm.io/gorm"
)

type ApprovalRepository interface {
	// Create returns ErrDuplicate when the signer already acted on the
	// transaction.
	Create(ctx context.Context, approval *models.TransactionApproval) error
	Exists(ctx context.Context, transactionID uint, signer models.ActorRef) (bool, error)
	ListByTransaction(ctx context.Context, transactionID uint) ([]models.TransactionApproval, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, approval *models.TransactionApproval) error {
	if err := r.db.WithContext(ctx).Create(approval).Error; err != nil {
		if err = translate(err); err == ErrDuplicate {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create approval: %w", err)
	}
	return nil
}

func (r *approvalRepository) Exists(ctx context.Context, transactionID uint, signer models.ActorRef) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TransactionApproval{}).
		Where("multi_sig_transaction_id = ? AND signer_id = ? AND signer_type = ?",
			transactionID, signer.ID, signer.Kind).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check approval: %w", err)
	}
	return count > 0, nil
}

func (r *approvalRepository) ListByTransaction(ctx context.Context, transactionID uint) ([]models.TransactionApproval, error) {
	var approvals []models.TransactionApproval
	err := r.db.WithContext(ctx).
		Where("multi_sig_transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&approvals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	return approvals, nil
}
