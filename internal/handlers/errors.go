package handlers

import (
	stderrors "errors"

	apperrors "github.com/LILIANSRL/chibank/internal/errors"
	"github.com/LILIANSRL/chibank/internal/models"
	"github.com/LILIANSRL/chibank/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/zeromicro/go-zero/core/logx"
)

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindValidation:        fiber.StatusBadRequest,
	apperrors.KindAuthorization:     fiber.StatusForbidden,
	apperrors.KindNotFound:          fiber.StatusNotFound,
	apperrors.KindInvalidState:      fiber.StatusConflict,
	apperrors.KindDuplicateAction:   fiber.StatusConflict,
	apperrors.KindInsufficientFunds: fiber.StatusUnprocessableEntity,
	apperrors.KindExecutionFailed:   fiber.StatusBadGateway,
	apperrors.KindExpiredNonce:      fiber.StatusBadRequest,
	apperrors.KindInvalidSignature:  fiber.StatusUnauthorized,
	apperrors.KindPersistence:       fiber.StatusInternalServerError,
}

// respondError writes the status and body for a service error.
func respondError(c *fiber.Ctx, err error) error {
	var de *apperrors.DomainError
	if !stderrors.As(err, &de) {
		logx.WithContext(c.UserContext()).Errorf("%s %s: %v", c.Method(), c.Path(), err)
		return utils.InternalError(c, "internal server error")
	}

	status, ok := statusByKind[de.Kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	message := de.Message
	switch de.Kind {
	case apperrors.KindPersistence:
		logx.WithContext(c.UserContext()).Errorf("%s %s: %v", c.Method(), c.Path(), err)
	case apperrors.KindExecutionFailed:
		if de.Err != nil {
			message = de.Message + ": " + de.Err.Error()
		}
	}
	return utils.Error(c, status, de.Code, message)
}

// extractUserClaims is a helper function to reduce duplication
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, err := utils.GetUserClaims(c)
	if err != nil || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("invalid %s", name)
	}
	return uint(id), nil
}
