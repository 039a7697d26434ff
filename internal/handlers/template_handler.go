package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/requestctx"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TemplateHandler struct {
	templates *services.TemplateService
	renderer  *services.Renderer
}

func NewTemplateHandler(templates *services.TemplateService, renderer *services.Renderer) *TemplateHandler {
	return &TemplateHandler{templates: templates, renderer: renderer}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, &services.ValidationError{Field: name, Message: "must be a UUID"}
	}
	return id, nil
}

func (h *TemplateHandler) List(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", true)
	list, err := h.templates.List(c.UserContext(), activeOnly)
	if err != nil {
		return respondError(c, err)
	}
	req := requestctx.RequestInfo(c)
	out := make([]dto.TemplateResponse, 0, len(list))
	for i := range list {
		view, err := h.renderer.Template(c.UserContext(), &list[i], req)
		if err != nil {
			return respondError(c, err)
		}
		out = append(out, *view)
	}
	return c.JSON(dto.ListResponse[dto.TemplateResponse]{Items: out, Total: len(out)})
}

func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	tmpl, err := h.templates.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	view, err := h.renderer.Template(c.UserContext(), tmpl, requestctx.RequestInfo(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req dto.TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	tmpl, err := h.templates.Create(c.UserContext(), actor, &req)
	if err != nil {
		return respondError(c, err)
	}
	view, err := h.renderer.Template(c.UserContext(), tmpl, requestctx.RequestInfo(c))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, "Template created", view)
}

func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	tmpl, err := h.templates.Update(c.UserContext(), actor, id, &req)
	if err != nil {
		return respondError(c, err)
	}
	view, err := h.renderer.Template(c.UserContext(), tmpl, requestctx.RequestInfo(c))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Template updated", view)
}

func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.templates.Delete(c.UserContext(), actor, id); err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Template deleted", nil)
}

func (h *TemplateHandler) QuestionNodes(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	tmpl, err := h.templates.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.EvaluationFormPayload{QuestionNodes: services.QuestionNodes(tmpl)})
}

func (h *TemplateHandler) UpdateEvaluationForm(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.EvaluationFormPayload
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	tmpl, err := h.templates.UpdateEvaluationForm(c.UserContext(), actor, id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Evaluation form updated",
		dto.EvaluationFormPayload{QuestionNodes: services.QuestionNodes(tmpl)})
}

// UpdateTrainingForm accepts JSON, or multipart with a training_nodes JSON
// field and an optional media file.
func (h *TemplateHandler) UpdateTrainingForm(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.TrainingFormRequest
	var media *services.Upload
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := json.Unmarshal([]byte(c.FormValue("training_nodes")), &req.TrainingNodes); err != nil {
			return respondError(c, &services.ValidationError{Field: "training_nodes", Message: "must be a JSON array"})
		}
		req.MediaNodeIndex = formInt(c, "media_node_index")
		req.AltNextIndex = formInt(c, "alt_next_index")
		req.NextButtonLabel = c.FormValue("next_button_label")
		req.AltButtonLabel = c.FormValue("alt_button_label")
		if media, err = formUpload(c, "media"); err != nil {
			return respondError(c, err)
		}
		if media != nil {
			defer closeUpload(media)
		}
	} else if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	tmpl, err := h.templates.UpdateTrainingForm(c.UserContext(), actor, id, &req, media)
	if err != nil {
		return respondError(c, err)
	}
	form, err := h.renderer.TrainingForm(c.UserContext(), tmpl, requestctx.RequestInfo(c))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Training form updated", form)
}

func formInt(c *fiber.Ctx, key string) *int {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
