package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
)

func TestLoadBuiltin(t *testing.T) {
	c, err := Load(Builtin)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Templates) != 3 {
		t.Fatalf("templates: want=3 got=%d", len(c.Templates))
	}
	types := map[string]bool{}
	for _, tmpl := range c.Templates {
		types[tmpl.EvaluationType] = true
	}
	for _, want := range []string{"SELF", "PROFESSIONAL", "BOTH"} {
		if !types[want] {
			t.Fatalf("builtin catalog lacks a %s template", want)
		}
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown key", yaml: "templates:\n  - name: A\n    colour: red\n", want: "colour"},
		{name: "duplicate", yaml: "templates:\n  - name: A\n  - name: a\n", want: "duplicate"},
		{name: "missing name", yaml: "templates:\n  - description: nameless\n", want: "name is required"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.yaml))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: want error containing %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := "templates:\n  - name: Custom\n    evaluation_type: SELF\n    allowed_editor_roles: [NURSE]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Templates) != 1 || c.Templates[0].AllowedEditorRoles[0] != "NURSE" {
		t.Fatalf("unexpected catalog: %+v", c.Templates)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file must fail")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db, err := database.Open(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	perms := services.NewPermissionService(db)
	templates := services.NewTemplateService(db, perms, services.NewLocalStorage(t.TempDir(), ""))

	c, err := Load(Builtin)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx := context.Background()
	created, err := Apply(ctx, templates, c)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if created != 3 {
		t.Fatalf("created: want=3 got=%d", created)
	}
	created, err = Apply(ctx, templates, c)
	if err != nil {
		t.Fatalf("Apply (again): %v", err)
	}
	if created != 0 {
		t.Fatalf("second apply created %d templates", created)
	}

	var diabetes models.CategoryTemplate
	if err := db.First(&diabetes, "name = ?", "Diabetes Check").Error; err != nil {
		t.Fatalf("load seeded template: %v", err)
	}
	_, nodes, err := templates.TrainingNodes(ctx, &diabetes)
	if err != nil {
		t.Fatalf("TrainingNodes: %v", err)
	}
	if len(nodes) != 3 || nodes[2].NextNodeID != nil {
		t.Fatalf("seeded training chain: %d nodes", len(nodes))
	}
}
