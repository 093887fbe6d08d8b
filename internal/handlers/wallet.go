package handlers

import (
	"github.com/LILIANSRL/chibank/internal/services/signer"
	"github.com/LILIANSRL/chibank/internal/services/wallet"
	"github.com/LILIANSRL/chibank/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	walletService wallet.Service
	signerService signer.Service
}

func NewWalletHandler(walletService wallet.Service, signerService signer.Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		signerService: signerService,
	}
}

func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input wallet.CreateWalletRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	created, err := h.walletService.CreateWallet(c.UserContext(), claims.Actor(), input)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Created(c, fiber.Map{"wallet": created})
}

func (h *WalletHandler) ListWallets(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	p := utils.GetPagination(c, 1, 20)
	wallets, total, err := h.walletService.ListWallets(c.UserContext(), claims.Actor(), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(wallets, p))
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	w, err := h.walletService.GetWallet(c.UserContext(), id, claims.Actor())
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"wallet": w})
}

func (h *WalletHandler) UpdateStatus(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var input struct {
		Status *bool `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil || input.Status == nil {
		return utils.BadRequest(c, "status is required")
	}

	w, err := h.walletService.UpdateStatus(c.UserContext(), id, claims.Actor(), *input.Status)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"wallet": w})
}

func (h *WalletHandler) DeleteWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.walletService.DeleteWallet(c.UserContext(), id, claims.Actor()); err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "Wallet deleted"})
}

func (h *WalletHandler) ListSigners(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	// GetWallet enforces view rights and loads the roster.
	w, err := h.walletService.GetWallet(c.UserContext(), id, claims.Actor())
	if err != nil {
		return respondError(c, err)
	}
	weight, err := h.signerService.TotalWeight(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{
		"signers":             w.Signers,
		"total_weight":        weight,
		"required_signatures": w.RequiredSignatures,
	})
}

// ClaimInvitations binds signer invitations sent to the caller's email.
func (h *WalletHandler) ClaimInvitations(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	n, err := h.signerService.ClaimInvitations(c.UserContext(), claims.Actor(), claims.Email)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"claimed": n})
}
