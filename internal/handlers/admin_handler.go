package handlers

import (
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	roles *services.RoleService
}

func NewAdminHandler(roles *services.RoleService) *AdminHandler {
	return &AdminHandler{roles: roles}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	users, total, err := h.roles.ListUsers(c.UserContext(), actor, services.UserFilter{
		Role:   c.Query("role"),
		Search: c.Query("q"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, services.UserView(&users[i]))
	}
	return c.JSON(dto.ListResponse[dto.UserResponse]{Items: out, Total: int(total)})
}

func (h *AdminHandler) AssignRole(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.AssignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := h.roles.Assign(c.UserContext(), actor, id, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, "Role assigned", services.UserView(user))
}

// AssignableRoles lists the roles the caller may hand out.
func (h *AdminHandler) AssignableRoles(c *fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	list := h.roles.Assignable(actor)
	out := make([]dto.RoleOption, 0, len(list))
	for _, r := range list {
		out = append(out, dto.RoleOption{Value: r.String(), Label: r.Label()})
	}
	return c.JSON(out)
}
