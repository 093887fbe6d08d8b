package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/LILIANSRL/chibank/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionFilter narrows ListByWallet.
type TransactionFilter struct {
	Status models.TransactionStatus
	Limit  int
	Offset int
}

// TransactionRepository persists multi-signature transactions. The Mark* and
// IncrementApprovals methods are conditional on the current status and
// report the number of rows they changed; zero means the status moved.
type TransactionRepository interface {
	Create(ctx context.Context, txn *models.MultiSigTransaction) error
	GetByID(ctx context.Context, walletID, id uint) (*models.MultiSigTransaction, error)
	LockByID(ctx context.Context, walletID, id uint) (*models.MultiSigTransaction, error)
	ListByWallet(ctx context.Context, walletID uint, filter TransactionFilter) ([]models.MultiSigTransaction, int64, error)

	IncrementApprovals(ctx context.Context, id uint) (int64, error)
	MarkRejected(ctx context.Context, id uint, reason string) (int64, error)
	MarkExecuted(ctx context.Context, id uint, hash string, at time.Time) (int64, error)
	MarkFailed(ctx context.Context, id uint, reason string) (int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *models.MultiSigTransaction) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", translate(err))
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, walletID, id uint) (*models.MultiSigTransaction, error) {
	var txn models.MultiSigTransaction
	err := r.db.WithContext(ctx).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("multi_sig_wallet_id = ?", walletID).
		First(&txn, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

func (r *transactionRepository) LockByID(ctx context.Context, walletID, id uint) (*models.MultiSigTransaction, error) {
	var txn models.MultiSigTransaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("multi_sig_wallet_id = ?", walletID).
		First(&txn, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

func (r *transactionRepository) ListByWallet(ctx context.Context, walletID uint, filter TransactionFilter) ([]models.MultiSigTransaction, int64, error) {
	var (
		txns  []models.MultiSigTransaction
		total int64
	)
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("multi_sig_wallet_id = ?", walletID)
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&models.MultiSigTransaction{}).
		Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Approvals").
		Order("created_at DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&txns).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, total, nil
}

// IncrementApprovals adds one approval and flips the status to approved in
// the same statement when the new count reaches quorum.
func (r *transactionRepository) IncrementApprovals(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MultiSigTransaction{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"current_approvals": gorm.Expr("current_approvals + 1"),
			"status": gorm.Expr("CASE WHEN current_approvals + 1 >= required_approvals THEN ? ELSE status END",
				string(models.StatusApproved)),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to record approval: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *transactionRepository) MarkRejected(ctx context.Context, id uint, reason string) (int64, error) {
	return r.transition(ctx, id, models.StatusPending, map[string]interface{}{
		"status":           models.StatusRejected,
		"rejection_reason": reason,
	})
}

func (r *transactionRepository) MarkExecuted(ctx context.Context, id uint, hash string, at time.Time) (int64, error) {
	return r.transition(ctx, id, models.StatusApproved, map[string]interface{}{
		"status":              models.StatusExecuted,
		"blockchain_txn_hash": hash,
		"executed_at":         at,
	})
}

func (r *transactionRepository) MarkFailed(ctx context.Context, id uint, reason string) (int64, error) {
	return r.transition(ctx, id, models.StatusApproved, map[string]interface{}{
		"status":           models.StatusFailed,
		"rejection_reason": reason,
	})
}

func (r *transactionRepository) transition(ctx context.Context, id uint, from models.TransactionStatus, values map[string]interface{}) (int64, error) {
	values["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.MultiSigTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	return result.RowsAffected, nil
}
