package middleware

import (
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/requestctx"
	"github.com/gofiber/fiber/v2"
)

// StaffRequired admits superusers and staff roles. It must run after LoadActor.
func StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requestctx.GetActor(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		if !actor.IsStaff() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Staff access required",
				Detail:  &dto.ErrorDetail{Type: "permission_denied", Message: "Staff access required"},
			})
		}
		return c.Next()
	}
}
