package handlers

import (
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/transaction"
	"github.com/LILIANSRL/chibank/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	transactionService transaction.Service
}

func NewTransactionHandler(transactionService transaction.Service) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

func (h *TransactionHandler) Initiate(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	walletID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var input transaction.InitiateRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	txn, err := h.transactionService.Initiate(c.UserContext(), walletID, claims.Actor(), input)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Created(c, fiber.Map{"transaction": txn})
}

func (h *TransactionHandler) List(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	walletID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	p := utils.GetPagination(c, 1, 20)
	txns, total, err := h.transactionService.ListTransactions(c.UserContext(), walletID, claims.Actor(), transaction.ListFilter{
		Status: models.TransactionStatus(c.Query("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(txns, p))
}

func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	walletID, txID, err := transactionIDs(c)
	if err != nil {
		return respondError(c, err)
	}

	txn, err := h.transactionService.GetTransaction(c.UserContext(), walletID, txID, claims.Actor())
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{
		"transaction": txn,
		"can_execute": h.transactionService.CanBeExecuted(txn),
	})
}

type actionInput struct {
	Signature string `json:"signature"`
	Comment   string `json:"comment"`
	Reason    string `json:"reason"`
}

func (h *TransactionHandler) Approve(c *fiber.Ctx) error {
	return h.recordAction(c, models.ActionApprove)
}

func (h *TransactionHandler) Reject(c *fiber.Ctx) error {
	return h.recordAction(c, models.ActionReject)
}

func (h *TransactionHandler) recordAction(c *fiber.Ctx, action models.ApprovalAction) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	walletID, txID, err := transactionIDs(c)
	if err != nil {
		return respondError(c, err)
	}

	var input actionInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.BadRequest(c, "Invalid request format")
		}
	}

	audit := approval.Audit{
		Signature: input.Signature,
		Comment:   input.Comment,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	txn, err := h.transactionService.RecordAction(c.UserContext(), walletID, txID, claims.Actor(), action, input.Reason, audit)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}

func (h *TransactionHandler) Execute(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	walletID, txID, err := transactionIDs(c)
	if err != nil {
		return respondError(c, err)
	}

	txn, err := h.transactionService.Execute(c.UserContext(), walletID, txID, claims.Actor())
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}

func (h *TransactionHandler) MarkFailed(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	walletID, txID, err := transactionIDs(c)
	if err != nil {
		return respondError(c, err)
	}

	var input actionInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	txn, err := h.transactionService.MarkFailed(c.UserContext(), walletID, txID, claims.Actor(), input.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}

func transactionIDs(c *fiber.Ctx) (uint, uint, error) {
	walletID, err := paramID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	txID, err := paramID(c, "txId")
	if err != nil {
		return 0, 0, err
	}
	return walletID, txID, nil
}
