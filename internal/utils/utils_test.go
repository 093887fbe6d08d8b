package utils_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LILIANSRL/chibank/internal/config"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	m := utils.NewTokenManager(&config.Config{
		JWTSecret:     "access",
		RefreshSecret: "refresh",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})

	access, refresh, err := m.GenerateTokens(&models.UserClaims{UserID: 7, Kind: models.ActorMerchant, Email: "m@example.com", TokenVersion: 3})
	require.NoError(t, err)

	claims, err := m.ParseToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, models.NewActor(models.ActorMerchant, 7), claims.Actor())
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Equal(t, "7", claims.Subject)

	_, err = m.ParseToken(refresh)
	assert.Error(t, err)

	claims, err = m.ParseRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "m@example.com", claims.Email)

	_, err = m.ParseToken("not-a-token")
	assert.Error(t, err)

	_, _, err = utils.NewTokenManager(&config.Config{}).GenerateTokens(&models.UserClaims{UserID: 1})
	assert.ErrorIs(t, err, utils.ErrMissingSecret)
}

func TestExpiredToken(t *testing.T) {
	m := utils.NewTokenManager(&config.Config{JWTSecret: "a", RefreshSecret: "r", AccessTTL: -time.Minute, RefreshTTL: time.Hour})
	access, _, err := m.GenerateTokens(&models.UserClaims{UserID: 1})
	require.NoError(t, err)

	_, err = m.ParseToken(access)
	assert.Error(t, err)
}

func TestGetPagination(t *testing.T) {
	tests := []struct {
		query      string
		page       int
		limit      int
		wantOffset int
	}{
		{"", 1, 20, 0},
		{"?page=3&limit=10", 3, 10, 20},
		{"?page=0&limit=-5", 1, 20, 0},
		{"?page=abc&limit=1000", 1, utils.MaxLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				p := utils.GetPagination(c, 1, 20)
				assert.Equal(t, tt.page, p.Page)
				assert.Equal(t, tt.limit, p.Limit)
				assert.Equal(t, tt.wantOffset, p.Offset)
				return c.SendStatus(fiber.StatusNoContent)
			})
			resp, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		})
	}

	p := utils.Pagination{Page: 1, Limit: 10}
	p.SetTotal(21)
	assert.Equal(t, 3, p.LastPage)
}

func TestErrorBody(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.Error(c, fiber.StatusConflict, "INVALID_STATE", "transaction is executed")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"error":"transaction is executed","code":"INVALID_STATE"}`, string(body))
}
