package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/requestctx"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors onto the error envelope. Unexpected
// errors are logged, reported and only described to staff.
func respondError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return errorJSON(c, fiber.StatusBadRequest, "validation_error", verr.Field, verr.Error())
	case errors.Is(err, services.ErrPermissionDenied):
		return errorJSON(c, fiber.StatusForbidden, "permission_denied", "", err.Error())
	case errors.Is(err, services.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not_found", "", err.Error())
	case errors.Is(err, services.ErrTemplateExists),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrEvaluationCompleted):
		return errorJSON(c, fiber.StatusConflict, "conflict", "", err.Error())
	case errors.Is(err, services.ErrBusy):
		return errorJSON(c, fiber.StatusServiceUnavailable, "busy", "", services.ErrBusy.Error())
	case services.IsAuthError(err):
		return errorJSON(c, fiber.StatusUnauthorized, "unauthorized", "", err.Error())
	}

	userID := ""
	actor, ok := requestctx.GetActor(c)
	if ok {
		userID = actor.ID().String()
	}
	slog.Error("request failed",
		"method", c.Method(),
		"path", c.Path(),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		"user_id", userID,
		"error", err.Error(),
	)
	if hub := sentryfiber.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}

	message := "Internal server error"
	if ok && actor.IsStaff() {
		message = err.Error()
	}
	return errorJSON(c, fiber.StatusInternalServerError, "internal_error", "", message)
}

func errorJSON(c *fiber.Ctx, status int, kind, field, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
		Detail:  &dto.ErrorDetail{Type: kind, Field: field, Message: message},
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusBadRequest, "validation_error", "", message)
}

func success(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.SuccessResponse{Success: true, Message: message, Data: data})
}

// actorOf returns the actor set by the LoadActor middleware.
func actorOf(c *fiber.Ctx) (*services.Actor, error) {
	actor, ok := requestctx.GetActor(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	return actor, nil
}
