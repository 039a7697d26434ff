package handlers

import (
	"strconv"
	"strings"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/requestctx"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type RecommendationHandler struct {
	recommendations *services.RecommendationService
	renderer        *services.Renderer
}

func NewRecommendationHandler(recommendations *services.RecommendationService, renderer *services.Renderer) *RecommendationHandler {
	return &RecommendationHandler{recommendations: recommendations, renderer: renderer}
}

func (h *RecommendationHandler) Get(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	rec, inst, err := h.recommendations.Get(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.renderer.Recommendation(rec, inst.Template, requestctx.RequestInfo(c)))
}

// Save accepts JSON, or multipart form fields with an optional video file.
func (h *RecommendationHandler) Save(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.RecommendationRequest
	var video *services.Upload
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req.Text = c.FormValue("text")
		req.StatusColor = c.FormValue("status_color")
		if v := c.FormValue("is_draft"); v != "" {
			draft, perr := strconv.ParseBool(v)
			if perr != nil {
				return respondError(c, &services.ValidationError{Field: "is_draft", Message: "must be a boolean"})
			}
			req.IsDraft = &draft
		}
		req.Sign, _ = strconv.ParseBool(c.FormValue("sign"))
		req.UseDefault, _ = strconv.ParseBool(c.FormValue("use_default"))
		if video, err = formUpload(c, "video"); err != nil {
			return respondError(c, err)
		}
		if video != nil {
			defer closeUpload(video)
		}
	} else if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	rec, err := h.recommendations.Save(c.UserContext(), actor, id, &req, video)
	if err != nil {
		return respondError(c, err)
	}
	_, inst, err := h.recommendations.Get(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Recommendation saved", h.renderer.Recommendation(rec, inst.Template, requestctx.RequestInfo(c)))
}

// Unseen lists signed recommendations not shown to the caller recently.
func (h *RecommendationHandler) Unseen(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	recs, err := h.recommendations.Unseen(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}

	req := requestctx.RequestInfo(c)
	out := make([]dto.RecommendationResponse, 0, len(recs))
	for i := range recs {
		_, inst, err := h.recommendations.Get(c.UserContext(), actor, recs[i].InstanceID)
		if err != nil {
			return respondError(c, err)
		}
		out = append(out, h.renderer.Recommendation(&recs[i], inst.Template, req))
	}
	return c.JSON(dto.ListResponse[dto.RecommendationResponse]{Items: out, Total: len(out)})
}
