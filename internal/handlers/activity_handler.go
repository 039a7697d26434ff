package handlers

import (
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ActivityHandler struct {
	activity *services.ActivityService
}

func NewActivityHandler(activity *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// Submit stores a client action log; the body is the raw JSON array.
func (h *ActivityHandler) Submit(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	n, err := h.activity.SubmitLog(c.UserContext(), actor, c.Body())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, "Activity recorded", fiber.Map{"count": n})
}

func (h *ActivityHandler) List(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	f := services.ActivityFilter{
		Action: c.Query("action"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, &services.ValidationError{Field: "user_id", Message: "must be a UUID"})
		}
		f.UserID = &id
	}
	logs, total, err := h.activity.List(c.UserContext(), actor, f)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.ActivityResponse, 0, len(logs))
	for i := range logs {
		out = append(out, services.ActivityView(&logs[i]))
	}
	return c.JSON(dto.ListResponse[dto.ActivityResponse]{Items: out, Total: int(total)})
}
