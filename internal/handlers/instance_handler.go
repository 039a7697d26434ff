package handlers

import (
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/requestctx"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type InstanceHandler struct {
	instances *services.InstanceService
	renderer  *services.Renderer
}

func NewInstanceHandler(instances *services.InstanceService, renderer *services.Renderer) *InstanceHandler {
	return &InstanceHandler{instances: instances, renderer: renderer}
}

func (h *InstanceHandler) render(c *fiber.Ctx, actor *services.Actor, list []models.CategoryInstance) ([]dto.InstanceResponse, error) {
	req := requestctx.RequestInfo(c)
	out := make([]dto.InstanceResponse, 0, len(list))
	for i := range list {
		view, err := h.renderOne(c, actor, &list[i], req)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

func (h *InstanceHandler) renderOne(c *fiber.Ctx, actor *services.Actor, inst *models.CategoryInstance, req *services.RequestInfo) (*dto.InstanceResponse, error) {
	form, rec, err := h.instances.EnsureDetails(c.UserContext(), inst.ID)
	if err != nil {
		return nil, err
	}
	return h.renderer.Instance(c.UserContext(), actor, inst, form, rec, req)
}

// List returns the caller's instances, or another user's with ?user_id=.
func (h *InstanceHandler) List(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	userID := actor.ID()
	if raw := c.Query("user_id"); raw != "" {
		if userID, err = uuid.Parse(raw); err != nil {
			return respondError(c, &services.ValidationError{Field: "user_id", Message: "must be a UUID"})
		}
	}
	list, err := h.instances.ListForUser(c.UserContext(), actor, userID)
	if err != nil {
		return respondError(c, err)
	}
	out, err := h.render(c, actor, list)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ListResponse[dto.InstanceResponse]{Items: out, Total: len(out)})
}

func (h *InstanceHandler) ListEditable(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	list, err := h.instances.ListEditable(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	out, err := h.render(c, actor, list)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ListResponse[dto.InstanceResponse]{Items: out, Total: len(out)})
}

func (h *InstanceHandler) Get(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	inst, err := h.instances.Get(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	view, err := h.renderOne(c, actor, inst, requestctx.RequestInfo(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

func (h *InstanceHandler) SaveResponses(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.SaveResponsesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	form, err := h.instances.SaveResponses(c.UserContext(), actor, id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Responses saved", fiber.Map{"state": form.State(), "completed_date": form.CompletedDate})
}

func (h *InstanceHandler) SaveTrainingResponses(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.SaveResponsesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if _, err := h.instances.SaveTrainingResponses(c.UserContext(), actor, id, req.Responses); err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Training responses saved", nil)
}

func (h *InstanceHandler) SaveProfessionalEvaluation(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.ProfessionalEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	form, err := h.instances.SaveProfessionalEvaluation(c.UserContext(), actor, id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Professional evaluation saved", fiber.Map{
		"state":          form.State(),
		"is_draft":       form.IsDraft,
		"completed_date": form.CompletedDate,
	})
}
