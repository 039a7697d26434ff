package middleware

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/requestctx"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// LoadActor resolves the token subject into an Actor with its current role.
// Roles are read from the database on every request so a role change takes
// effect without waiting for the token to expire.
func LoadActor(perms *services.PermissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := requestctx.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		actor, err := perms.LoadActor(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrPermissionDenied) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
					Error: true, Message: "Unauthorized: account unavailable",
				})
			}
			return err
		}
		requestctx.SetActor(c, actor)
		return c.Next()
	}
}
