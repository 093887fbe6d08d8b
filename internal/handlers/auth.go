package handlers

import (
	"time"

	"github.com/LILIANSRL/chibank/internal/config"
	"github.com/LILIANSRL/chibank/internal/services/auth"
	"github.com/LILIANSRL/chibank/internal/services/walletauth"
	"github.com/LILIANSRL/chibank/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService   auth.Service
	walletAuth    walletauth.Service
	secureCookies bool
}

func NewAuthHandler(authService auth.Service, walletAuth walletauth.Service, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		walletAuth:    walletAuth,
		secureCookies: cfg.IsProduction(),
	}
}

// RequestNonce issues the message a wallet signs to log in.
func (h *AuthHandler) RequestNonce(c *fiber.Ctx) error {
	var input walletauth.NonceRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}

	resp, err := h.walletAuth.RequestNonce(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, resp)
}

// VerifySignature logs in with a signed nonce and returns JWT tokens.
func (h *AuthHandler) VerifySignature(c *fiber.Ctx) error {
	var input walletauth.VerifyRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	input.IPAddress = c.IP()
	input.UserAgent = c.Get(fiber.HeaderUserAgent)

	session, err := h.walletAuth.VerifySignature(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}

	h.setAuthCookies(c, session.AccessToken, session.RefreshToken)
	return utils.Success(c, fiber.Map{
		"message":       "Login successful",
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"user":          session.User,
		"wallet":        session.Wallet,
	})
}

// RefreshToken handles token refresh requests
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		var input struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&input); err != nil || input.RefreshToken == "" {
			return utils.Unauthorized(c, "Refresh token not provided")
		}
		refreshToken = input.RefreshToken
	}

	access, refresh, err := h.authService.RefreshTokens(c.UserContext(), refreshToken)
	if err != nil {
		return utils.Unauthorized(c, "Invalid refresh token")
	}

	h.setAuthCookies(c, access, refresh)
	return utils.Success(c, fiber.Map{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// Logout invalidates every token issued to the caller.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	if err := h.authService.Logout(c.UserContext(), claims.UserID); err != nil {
		return respondError(c, err)
	}

	h.clearAuthCookies(c)
	return utils.Success(c, fiber.Map{"message": "Successfully logged out"})
}

func (h *AuthHandler) LinkWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input walletauth.VerifyRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	input.IPAddress = c.IP()
	input.UserAgent = c.Get(fiber.HeaderUserAgent)

	linked, err := h.walletAuth.LinkWallet(c.UserContext(), claims.Actor(), input)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Created(c, fiber.Map{
		"message": "Wallet linked successfully",
		"wallet":  linked,
	})
}

func (h *AuthHandler) LinkedWallets(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	wallets, err := h.walletAuth.LinkedWallets(c.UserContext(), claims.Actor())
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"wallets": wallets})
}

func (h *AuthHandler) UnlinkWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.walletAuth.UnlinkWallet(c.UserContext(), claims.Actor(), id); err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "Wallet unlinked successfully"})
}

func (h *AuthHandler) setAuthCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/api/auth",
	})
}

func (h *AuthHandler) clearAuthCookies(c *fiber.Ctx) {
	for name, path := range map[string]string{"access_token": "/", "refresh_token": "/api/auth"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Now().Add(-time.Hour),
			HTTPOnly: true,
			Secure:   h.secureCookies,
			Path:     path,
		})
	}
}
