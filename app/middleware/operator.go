// Package middleware provides HTTP middleware for the orchestrator API
package middleware

import (
	"github.com/gofiber/fiber/v3"
)

// OperatorHeader carries the identity minted by the hosted sign-in service
const OperatorHeader = "X-Operator-ID"

// RequireOperator extracts the operator identity set by the hosted sign-in
// proxy and rejects requests without one. Identity verification itself
// happens upstream; this layer only refuses anonymous traffic.
func RequireOperator() fiber.Handler {
	return func(c fiber.Ctx) error {
		operatorID := c.Get(OperatorHeader)
		if operatorID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "operator identity required",
			})
		}
		c.Locals("operator_id", operatorID)
		return c.Next()
	}
}
