package notification

import (
	"context"
	"fmt"

	"github.com/LILIANSRL/chibank/internal/models"

	"github.com/zeromicro/go-zero/core/logx"
)

// SignerLister loads a wallet's roster.
type SignerLister interface {
	ListByWallet(ctx context.Context, walletID uint) ([]models.WalletSigner, error)
}

// Service is a minimal notification service implementation. Delivery is a
// structured log line per recipient.
type Service struct {
	signers SignerLister
}

// NewService creates a new notification service.
func NewService(signers SignerLister) *Service {
	return &Service{signers: signers}
}

// NotifyTransition tells the wallet's active signers that txn reached its
// current status. While pending only signers who can approve are told.
func (s *Service) NotifyTransition(ctx context.Context, txn *models.MultiSigTransaction) (int, error) {
	signers, err := s.signers.ListByWallet(ctx, txn.MultiSigWalletID)
	if err != nil {
		return 0, fmt.Errorf("failed to list signers: %w", err)
	}

	sent := 0
	for _, signer := range signers {
		if !recipient(signer, txn.Status) {
			continue
		}
		logx.WithContext(ctx).Infof("notify %s <%s>: transaction %s on wallet %d is %s (%d/%d approvals)",
			signer.SignerName, signer.SignerEmail, txn.TrxID, txn.MultiSigWalletID,
			txn.Status, txn.CurrentApprovals, txn.RequiredApprovals)
		sent++
	}
	return sent, nil
}

func recipient(signer models.WalletSigner, status models.TransactionStatus) bool {
	if !signer.Status || signer.SignerEmail == "" {
		return false
	}
	if status == models.StatusPending {
		return signer.CanApprove
	}
	return true
}
