package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/LILIANSRL/chibank/internal/config"
	"github.com/LILIANSRL/chibank/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "chibank-api"

var (
	ErrMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token claims")
)

// TokenManager signs and parses the access and refresh tokens. Refresh
// tokens use their own secret so one cannot stand in for the other.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenManager(cfg *config.Config) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// GenerateTokens generates an access token and a refresh token for the given user claims.
func (m *TokenManager) GenerateTokens(claims *models.UserClaims) (accessToken string, refreshToken string, err error) {
	if len(m.accessSecret) == 0 || len(m.refreshSecret) == 0 {
		return "", "", ErrMissingSecret
	}

	now := m.now()
	accessToken, err = sign(m.accessSecret, claims, now, m.accessTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = sign(m.refreshSecret, claims, now, m.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func sign(secret []byte, claims *models.UserClaims, now time.Time, ttl time.Duration) (string, error) {
	c := models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(claims.UserID), 10),
		},
		UserID:       claims.UserID,
		Kind:         claims.Kind,
		Email:        claims.Email,
		TokenVersion: claims.TokenVersion,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// ParseToken parses and validates an access token.
func (m *TokenManager) ParseToken(tokenStr string) (*models.UserClaims, error) {
	return parse(m.accessSecret, tokenStr)
}

// ParseRefreshToken parses and validates a refresh token.
func (m *TokenManager) ParseRefreshToken(tokenStr string) (*models.UserClaims, error) {
	return parse(m.refreshSecret, tokenStr)
}

func parse(secret []byte, tokenStr string) (*models.UserClaims, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenStr, &models.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
