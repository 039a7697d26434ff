package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/requestctx"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

func errorApp(err error, actor *services.Actor) *fiber.App {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if actor != nil {
			requestctx.SetActor(c, actor)
		}
		return respondError(c, err)
	})
	return app
}

func decodeError(t *testing.T, app *fiber.App) (int, dto.ErrorResponse) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var body dto.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		kind      string
		wantField string
	}{
		{name: "validation", err: &services.ValidationError{Field: "name", Message: "is required"}, status: 400, kind: "validation_error", wantField: "name"},
		{name: "permission", err: services.ErrPermissionDenied, status: 403, kind: "permission_denied"},
		{name: "not found", err: services.ErrTemplateNotFound, status: 404, kind: "not_found"},
		{name: "template exists", err: services.ErrTemplateExists, status: 409, kind: "conflict"},
		{name: "email taken", err: services.ErrEmailTaken, status: 409, kind: "conflict"},
		{name: "completed", err: services.ErrEvaluationCompleted, status: 409, kind: "conflict"},
		{name: "busy", err: services.ErrBusy, status: 503, kind: "busy"},
		{name: "credentials", err: services.ErrInvalidCredentials, status: 401, kind: "unauthorized"},
		{name: "unexpected", err: errors.New("disk on fire"), status: 500, kind: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := decodeError(t, errorApp(tt.err, nil))
			if status != tt.status {
				t.Fatalf("status: want=%d got=%d", tt.status, status)
			}
			if !body.Error || body.Detail == nil || body.Detail.Type != tt.kind {
				t.Fatalf("detail: want type=%s got %+v", tt.kind, body.Detail)
			}
			if body.Detail.Field != tt.wantField {
				t.Fatalf("field: want=%q got=%q", tt.wantField, body.Detail.Field)
			}
		})
	}
}

func TestInternalErrorsAreOnlyDescribedToStaff(t *testing.T) {
	cause := errors.New("disk on fire")
	patient := &services.Actor{User: &models.User{}, Role: roles.Patient}
	coordinator := &services.Actor{User: &models.User{}, Role: roles.Coordinator}

	_, body := decodeError(t, errorApp(cause, patient))
	if body.Message != "Internal server error" {
		t.Fatalf("patient message: got %q", body.Message)
	}
	_, body = decodeError(t, errorApp(cause, coordinator))
	if body.Message != cause.Error() {
		t.Fatalf("staff message: want=%q got=%q", cause.Error(), body.Message)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		ping   func() error
		status string
	}{
		{name: "ok", ping: func() error { return nil }, status: "ok"},
		{name: "degraded", ping: func() error { return errors.New("connection refused") }, status: "degraded"},
	}
	for _, tt := range tests {
		app := fiber.New()
		app.Get("/health", NewHealthHandler(tt.ping).Check)
		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		if err != nil {
			t.Fatalf("%s: app.Test: %v", tt.name, err)
		}
		var body dto.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", tt.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 200 || body.Status != tt.status {
			t.Fatalf("%s: want status=%s got code=%d body=%+v", tt.name, tt.status, resp.StatusCode, body)
		}
	}
}
