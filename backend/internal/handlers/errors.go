package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/user/tradevault/backend/internal/escrow"
)

// escrowErrorResponse maps each business-rule failure to a stable HTTP
// status and machine-readable code, so clients can tell a lost claim race
// (retry another trade) apart from not-found or eligibility failures
// (abandon). Anything outside the taxonomy is an internal failure.
func escrowErrorResponse(c *fiber.Ctx, err error) error {
	var status int
	var code string

	switch {
	case errors.Is(err, escrow.ErrNotFound):
		status, code = fiber.StatusNotFound, "not_found"
	case errors.Is(err, escrow.ErrPaymentRequired):
		status, code = fiber.StatusPaymentRequired, "payment_required"
	case errors.Is(err, escrow.ErrNotClaimable):
		status, code = fiber.StatusConflict, "not_claimable"
	case errors.Is(err, escrow.ErrNotJoinable):
		status, code = fiber.StatusConflict, "not_joinable"
	case errors.Is(err, escrow.ErrAlreadyAssignedToOther):
		status, code = fiber.StatusConflict, "already_assigned_to_other"
	case errors.Is(err, escrow.ErrAlreadyAssignedToSelf):
		status, code = fiber.StatusConflict, "already_assigned_to_self"
	case errors.Is(err, escrow.ErrAlreadyJoined):
		status, code = fiber.StatusConflict, "already_joined"
	case errors.Is(err, escrow.ErrSelfJoinForbidden):
		status, code = fiber.StatusForbidden, "self_join_forbidden"
	case errors.Is(err, escrow.ErrInvalidStateTransition):
		status, code = fiber.StatusConflict, "invalid_state_transition"
	case errors.Is(err, escrow.ErrUnauthorized):
		status, code = fiber.StatusForbidden, "unauthorized"
	default:
		log.Printf("Internal failure: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal failure",
			"code":  "internal_failure",
		})
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "code": code})
}
