// Package requestctx reads request-scoped values stored on the Fiber context.
package requestctx

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorKey = "actor"

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

func SetActor(c *fiber.Ctx, actor *services.Actor) {
	c.Locals(actorKey, actor)
}

// GetActor returns the actor loaded by the LoadActor middleware.
func GetActor(c *fiber.Ctx) (*services.Actor, bool) {
	actor, ok := c.Locals(actorKey).(*services.Actor)
	return actor, ok && actor != nil
}

// RequestInfo captures scheme and host for absolute media URLs.
func RequestInfo(c *fiber.Ctx) *services.RequestInfo {
	host := c.Hostname()
	if host == "" {
		return nil
	}
	return &services.RequestInfo{Scheme: c.Protocol(), Host: host}
}
