// Package middleware provides HTTP middleware components for the application.
// It includes authentication and request metrics middleware for the fiber
// web framework.
package middleware

import (
	"context"
	"strings"

	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/zeromicro/go-zero/core/logx"
)

// TokenParser validates access tokens.
type TokenParser interface {
	ParseToken(token string) (*models.UserClaims, error)
}

// UserLookup loads the user behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// AuthMiddleware handles JWT token validation and user authentication.
// It extracts the JWT token from the Authorization header, validates it,
// and adds the user claims to the request context.
type AuthMiddleware struct {
	tokens TokenParser
	users  UserLookup
}

func NewAuthMiddleware(tokens TokenParser, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		users:  users,
	}
}

// Handler validates JWT tokens and adds claims to the request context.
// It checks for:
// - Presence of Authorization header with Bearer token
// - Valid JWT signature and expiry
// - Token version matches current user version
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return utils.Unauthorized(c, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return utils.Unauthorized(c, "invalid authorization format")
	}

	claims, err := m.tokens.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		logx.WithContext(ctx).Infof("token validation error: %v", err)
		return utils.Unauthorized(c, "invalid token")
	}

	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		logx.WithContext(ctx).Infof("user %d from token not found: %v", claims.UserID, err)
		return utils.Unauthorized(c, "invalid token")
	}
	if user.TokenVersion != claims.TokenVersion {
		logx.WithContext(ctx).Infof("token version mismatch for user %d. Token: %d, DB: %d",
			claims.UserID, claims.TokenVersion, user.TokenVersion)
		return utils.Unauthorized(c, "session expired")
	}
	if !user.IsActive() {
		return utils.Unauthorized(c, "account is not active")
	}

	c.Locals(utils.ClaimsKey, claims)
	return c.Next()
}
