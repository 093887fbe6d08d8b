// Package signer answers who may act on a wallet. Every authority read is
// scoped to active signer rows.
package signer

import (
	"context"
	"errors"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"

	"github.com/zeromicro/go-zero/core/logx"
)

type Service interface {
	// FindSigner returns the active signer row for actor, or nil when the
	// actor holds none.
	FindSigner(ctx context.Context, walletID uint, actor models.ActorRef) (*models.WalletSigner, error)
	CanInitiate(ctx context.Context, walletID uint, actor models.ActorRef) (bool, error)
	CanApprove(ctx context.Context, walletID uint, actor models.ActorRef) (bool, error)
	// TotalWeight sums weight over active signers. The quorum check counts
	// approvals and does not read it.
	TotalWeight(ctx context.Context, walletID uint) (int64, error)
	ListSigners(ctx context.Context, walletID uint) ([]models.WalletSigner, error)
	// ClaimInvitations binds pending signer rows invited under email to actor.
	ClaimInvitations(ctx context.Context, actor models.ActorRef, email string) (int64, error)
	// WithTx returns a Service reading through the given transaction.
	WithTx(tx *repositories.Repositories) Service
}

type service struct {
	repos *repositories.Repositories
}

func NewService(repos *repositories.Repositories) Service {
	if repos == nil {
		panic("repositories are required")
	}
	return &service{repos: repos}
}

func (s *service) WithTx(tx *repositories.Repositories) Service {
	return &service{repos: tx}
}

func (s *service) FindSigner(ctx context.Context, walletID uint, actor models.ActorRef) (*models.WalletSigner, error) {
	if !actor.Valid() {
		return nil, nil
	}
	signer, err := s.repos.Signers.FindActive(ctx, walletID, actor)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("find signer", err)
	}
	return signer, nil
}

func (s *service) CanInitiate(ctx context.Context, walletID uint, actor models.ActorRef) (bool, error) {
	signer, err := s.FindSigner(ctx, walletID, actor)
	if err != nil || signer == nil {
		return false, err
	}
	return signer.CanInitiate, nil
}

func (s *service) CanApprove(ctx context.Context, walletID uint, actor models.ActorRef) (bool, error) {
	signer, err := s.FindSigner(ctx, walletID, actor)
	if err != nil || signer == nil {
		return false, err
	}
	return signer.CanApprove, nil
}

func (s *service) TotalWeight(ctx context.Context, walletID uint) (int64, error) {
	total, err := s.repos.Signers.SumActiveWeight(ctx, walletID)
	if err != nil {
		return 0, apperrors.Persistence("sum signer weight", err)
	}
	return total, nil
}

func (s *service) ListSigners(ctx context.Context, walletID uint) ([]models.WalletSigner, error) {
	signers, err := s.repos.Signers.ListByWallet(ctx, walletID)
	if err != nil {
		return nil, apperrors.Persistence("list signers", err)
	}
	return signers, nil
}

func (s *service) ClaimInvitations(ctx context.Context, actor models.ActorRef, email string) (int64, error) {
	if !actor.Valid() {
		return 0, apperrors.Validation("invalid actor")
	}
	if email == "" {
		return 0, apperrors.Validation("email is required")
	}
	n, err := s.repos.Signers.BindPending(ctx, email, actor)
	if err != nil {
		return 0, apperrors.Persistence("claim invitations", err)
	}
	if n > 0 {
		logx.WithContext(ctx).Infof("bound %d pending signer invitation(s) to %s", n, actor)
	}
	return n, nil
}
