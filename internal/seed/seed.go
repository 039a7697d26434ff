// Package seed loads the template catalog applied at startup.
package seed

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"gopkg.in/yaml.v3"
)

// Builtin selects the catalog compiled into the binary.
const Builtin = "builtin"

//go:embed catalog.yaml
var builtinFS embed.FS

type Catalog struct {
	Templates []dto.TemplateRequest `yaml:"templates"`
}

// Parse decodes a YAML catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	seen := map[string]bool{}
	for i, t := range c.Templates {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			return nil, fmt.Errorf("template catalog entry %d: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("template catalog: duplicate name %q", t.Name)
		}
		seen[name] = true
	}
	return &c, nil
}

// Load reads the catalog at path, or the builtin one.
func Load(path string) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	if path == Builtin {
		data, err = builtinFS.ReadFile("catalog.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}
	return Parse(data)
}

// Apply creates every catalog template whose name does not exist yet.
// Existing templates are left untouched, so reruns are no-ops.
func Apply(ctx context.Context, templates *services.TemplateService, c *Catalog) (int, error) {
	existing, err := templates.List(ctx, false)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[strings.ToLower(t.Name)] = true
	}

	actor := services.SystemActor()
	created := 0
	for i := range c.Templates {
		req := &c.Templates[i]
		if have[strings.ToLower(strings.TrimSpace(req.Name))] {
			continue
		}
		if _, err := templates.Create(ctx, actor, req); err != nil {
			return created, fmt.Errorf("seed template %q: %w", req.Name, err)
		}
		created++
	}
	if created > 0 {
		slog.Info("template catalog applied", "created", created, "total", len(c.Templates))
	}
	return created, nil
}
