package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated user a request acts for. It is passed explicitly
// to every permission and render call.
type Actor struct {
	User *models.User
	Role roles.Role
}

// SystemActor is used by startup jobs such as catalog seeding.
func SystemActor() *Actor {
	return &Actor{User: &models.User{IsSuperuser: true, IsStaff: true}, Role: roles.Admin}
}

func (a *Actor) ID() uuid.UUID {
	if a == nil || a.User == nil {
		return uuid.Nil
	}
	return a.User.ID
}

// UserID returns nil for the system actor so activity rows are not attributed.
func (a *Actor) UserID() *uuid.UUID {
	id := a.ID()
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (a *Actor) IsSuperuser() bool {
	return a != nil && a.User != nil && a.User.IsSuperuser
}

func (a *Actor) IsStaff() bool {
	return a.IsSuperuser() || (a != nil && roles.IsStaff(a.Role))
}

// Fields of an instance that no role may edit.
var alwaysReadonlyFields = []string{
	"user",
	"template",
	"created_at",
	"updated_by",
	"signed_by",
	"signed_at",
}

// Fields of an instance that editors may change.
var mutableInstanceFields = []string{
	"responses",
	"professional_responses",
	"status_color",
	"is_draft",
	"completion_date",
	"recommendation_text",
	"recommendation_video",
}

// CanEdit decides whether actor may edit instances of tmpl.
func CanEdit(actor *Actor, tmpl *models.CategoryTemplate) bool {
	if actor == nil || tmpl == nil || tmpl.IsReadonly {
		return false
	}
	if actor.IsStaff() {
		return true
	}
	return roles.Contains(tmpl.EditorRoles(), actor.Role)
}

// ReadonlyFields lists the instance fields actor may not change.
// The instance's Template must be loaded.
func ReadonlyFields(actor *Actor, instance *models.CategoryInstance) []string {
	out := append([]string(nil), alwaysReadonlyFields...)
	if instance == nil || !CanEdit(actor, instance.Template) {
		out = append(out, mutableInstanceFields...)
	}
	return out
}

type PermissionService struct {
	db *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{db: db}
}

// LoadActor loads a user together with its role membership.
func (s *PermissionService) LoadActor(ctx context.Context, userID uuid.UUID) (*Actor, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Roles").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrPermissionDenied
	}
	return &Actor{User: &user, Role: user.Role()}, nil
}

// HasPermission is true when the actor holds codename directly or through
// its role group. Superusers hold everything.
func (s *PermissionService) HasPermission(ctx context.Context, actor *Actor, codename string) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.IsSuperuser() {
		return true, nil
	}

	var direct int64
	if err := s.db.WithContext(ctx).Model(&models.UserPermission{}).
		Where("user_id = ? AND codename = ?", actor.ID(), codename).
		Count(&direct).Error; err != nil {
		return false, err
	}
	if direct > 0 {
		return true, nil
	}

	var group int64
	if err := s.db.WithContext(ctx).Model(&models.GroupPermission{}).
		Where("group_role = ? AND codename = ?", actor.Role, codename).
		Count(&group).Error; err != nil {
		return false, err
	}
	return group > 0, nil
}

// Require returns ErrPermissionDenied unless the actor holds codename.
func (s *PermissionService) Require(ctx context.Context, actor *Actor, codename string) error {
	ok, err := s.HasPermission(ctx, actor, codename)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrPermissionDenied, codename)
	}
	return nil
}

// CanView lets owners read their own instances and anyone holding
// view_categoryinstance read the rest.
func (s *PermissionService) CanView(ctx context.Context, actor *Actor, instance *models.CategoryInstance) (bool, error) {
	if actor == nil || instance == nil {
		return false, nil
	}
	if instance.UserID == actor.ID() {
		return true, nil
	}
	return s.HasPermission(ctx, actor, models.PermViewInstance)
}

// RequireEdit combines the capability check with the per-template gate.
func (s *PermissionService) RequireEdit(ctx context.Context, actor *Actor, codename string, tmpl *models.CategoryTemplate) error {
	if err := s.Require(ctx, actor, codename); err != nil {
		return err
	}
	if !CanEdit(actor, tmpl) {
		return fmt.Errorf("%w: cannot edit %s", ErrPermissionDenied, tmpl.Name)
	}
	return nil
}

// Grant gives a single user a capability.
func (s *PermissionService) Grant(ctx context.Context, userID uuid.UUID, codename string) error {
	perm := models.UserPermission{UserID: userID, Codename: codename}
	return s.db.WithContext(ctx).
		Where("user_id = ? AND codename = ?", userID, codename).
		FirstOrCreate(&perm).Error
}
