package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Handlers struct {
	Auth            *handlers.AuthHandler
	Health          *handlers.HealthHandler
	Templates       *handlers.TemplateHandler
	Instances       *handlers.InstanceHandler
	Recommendations *handlers.RecommendationHandler
	Activity        *handlers.ActivityHandler
	Admin           *handlers.AdminHandler
}

func Setup(app *fiber.App, cfg *config.Config, perms *services.PermissionService, h Handlers) {
	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	protected := api.Group("", middleware.JWTProtected(cfg), middleware.LoadActor(perms))
	protected.Post("/auth/logout", h.Auth.Logout)
	protected.Get("/auth/me", h.Auth.Me)
	protected.Delete("/auth/account", h.Auth.DeleteAccount)

	protected.Get("/templates", h.Templates.List)
	protected.Get("/templates/:id", h.Templates.Get)
	protected.Get("/templates/:id/question-nodes", h.Templates.QuestionNodes)

	protected.Get("/instances", h.Instances.List)
	protected.Get("/instances/editable", h.Instances.ListEditable)
	protected.Get("/instances/:id", h.Instances.Get)
	protected.Put("/instances/:id/responses", h.Instances.SaveResponses)
	protected.Put("/instances/:id/training-responses", h.Instances.SaveTrainingResponses)
	protected.Post("/instances/:id/professional-evaluation", h.Instances.SaveProfessionalEvaluation)
	protected.Get("/instances/:id/recommendation", h.Recommendations.Get)
	protected.Put("/instances/:id/recommendation", h.Recommendations.Save)
	protected.Get("/recommendations/unseen", h.Recommendations.Unseen)

	protected.Post("/activity", h.Activity.Submit)
	protected.Get("/roles/assignable", h.Admin.AssignableRoles)

	// Template authoring and user administration (staff only; permissions
	// are checked again by the services)
	admin := protected.Group("/admin", middleware.StaffRequired())
	admin.Post("/templates", h.Templates.Create)
	admin.Put("/templates/:id", h.Templates.Update)
	admin.Delete("/templates/:id", h.Templates.Delete)
	admin.Put("/templates/:id/evaluation-form", h.Templates.UpdateEvaluationForm)
	admin.Put("/templates/:id/training-form", h.Templates.UpdateTrainingForm)
	admin.Get("/users", h.Admin.ListUsers)
	admin.Put("/users/:id/role", h.Admin.AssignRole)
	admin.Get("/activity", h.Activity.List)
}
