package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/session"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const testAdminEmail = "admin@example.com"

type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (m *memStorage) Save(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStorage) URL(key string, _ *RequestInfo) *string {
	if key == "" {
		return nil
	}
	u := "https://media.test/" + key
	return &u
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type testEnv struct {
	db        *gorm.DB
	storage   *memStorage
	perms     *PermissionService
	auth      *AuthService
	templates *TemplateService
	instances *InstanceService
	recs      *RecommendationService
	roles     *RoleService
	activity  *ActivityService
	renderer  *Renderer
	recent    *session.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		DBDriver:         "sqlite",
		SQLitePath:       ":memory:",
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  time.Hour,
		JWTRefreshExpiry: 24 * time.Hour,
		AdminEmails:      testAdminEmail,
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := database.BootstrapGroups(db); err != nil {
		t.Fatalf("BootstrapGroups: %v", err)
	}

	retry := database.Retrier{Attempts: 3, Delay: time.Millisecond}
	storage := newMemStorage()
	perms := NewPermissionService(db)
	recent := session.NewMemoryStore(20)
	return &testEnv{
		db:        db,
		storage:   storage,
		perms:     perms,
		auth:      NewAuthService(db, cfg, storage),
		templates: NewTemplateService(db, perms, storage),
		instances: NewInstanceService(db, perms, retry),
		recs:      NewRecommendationService(db, perms, storage, recent, retry),
		roles:     NewRoleService(db, perms),
		activity:  NewActivityService(db, perms, nil),
		renderer:  NewRenderer(db, storage),
		recent:    recent,
	}
}

// newUser registers an account and moves it to role.
func (e *testEnv) newUser(t *testing.T, email string, role roles.Role) *Actor {
	t.Helper()
	ctx := context.Background()
	resp, err := e.auth.Register(ctx, &dto.RegisterRequest{Email: email, Password: "password123", FirstName: "Test", LastName: strings.Split(email, "@")[0]})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	if role != "" && role.String() != resp.User.Role {
		if _, err := e.roles.Assign(ctx, SystemActor(), resp.User.ID, role.String()); err != nil {
			t.Fatalf("Assign(%s, %s): %v", email, role, err)
		}
	}
	actor, err := e.perms.LoadActor(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("LoadActor: %v", err)
	}
	return actor
}

func boolPtr(b bool) *bool { return &b }

func templateRequest(name, evalType string, editors ...string) *dto.TemplateRequest {
	return &dto.TemplateRequest{
		Name:               name,
		Description:        name + " description",
		EvaluationType:     evalType,
		AllowedEditorRoles: editors,
		DefaultRecommendations: map[string]string{
			"no_risk": "All good.",
			"risk":    "See a doctor.",
			"pending": "Waiting for review.",
		},
	}
}

func (e *testEnv) createTemplate(t *testing.T, req *dto.TemplateRequest) *models.CategoryTemplate {
	t.Helper()
	tmpl, err := e.templates.Create(context.Background(), SystemActor(), req)
	if err != nil {
		t.Fatalf("Create(%s): %v", req.Name, err)
	}
	return tmpl
}

func (e *testEnv) instanceOf(t *testing.T, userID, templateID uuid.UUID) *models.CategoryInstance {
	t.Helper()
	var inst models.CategoryInstance
	if err := e.db.Preload("Template").Where("user_id = ? AND template_id = ?", userID, templateID).First(&inst).Error; err != nil {
		t.Fatalf("instance of user %s template %s: %v", userID, templateID, err)
	}
	return &inst
}

func (e *testEnv) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error: want=%v got=%v", target, err)
	}
}

func wantValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError on %q, got %v", field, err)
	}
	if field != "" && !strings.HasPrefix(verr.Field, field) {
		t.Fatalf("validation field: want prefix %q got %q", field, verr.Field)
	}
}

func (e *testEnv) storedRecommendation(t *testing.T, instanceID uuid.UUID) models.Recommendation {
	t.Helper()
	var rec models.Recommendation
	if err := e.db.First(&rec, "instance_id = ?", instanceID).Error; err != nil {
		t.Fatalf("load recommendation: %v", err)
	}
	return rec
}
