package auth

import (
	"context"
	"errors"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/repositories"

	"github.com/zeromicro/go-zero/core/logx"
)

// Tokens signs and parses session tokens.
type Tokens interface {
	GenerateTokens(claims *models.UserClaims) (string, string, error)
	ParseRefreshToken(token string) (*models.UserClaims, error)
}

// Service manages sessions after wallet login: refreshing tokens and
// revoking them on logout.
type Service interface {
	RefreshTokens(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, userID uint) error
}

type service struct {
	userRepo repositories.UserRepository
	tokens   Tokens
}

func NewService(userRepo repositories.UserRepository, tokens Tokens) Service {
	return &service{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

func (s *service) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", "", apperrors.Validation("invalid refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", "", apperrors.NotFound("user")
		}
		return "", "", apperrors.Persistence("get user", err)
	}

	if user.TokenVersion != claims.TokenVersion {
		logx.WithContext(ctx).Infof("refresh refused for user %d: token version mismatch", user.ID)
		return "", "", apperrors.Validation("refresh token has been revoked")
	}
	if !user.IsActive() {
		return "", "", apperrors.Authorization("refresh")
	}

	return s.tokens.GenerateTokens(&models.UserClaims{
		UserID:       user.ID,
		Kind:         user.Actor().Kind,
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
	})
}

// Logout invalidates every refresh token issued to the user.
func (s *service) Logout(ctx context.Context, userID uint) error {
	if err := s.userRepo.IncrementTokenVersion(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.NotFound("user")
		}
		return apperrors.Persistence("logout", err)
	}
	return nil
}
