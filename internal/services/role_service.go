package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleService struct {
	db    *gorm.DB
	perms *PermissionService
}

func NewRoleService(db *gorm.DB, perms *PermissionService) *RoleService {
	return &RoleService{db: db, perms: perms}
}

// Assignable lists the roles the actor may hand out.
func (s *RoleService) Assignable(actor *Actor) []roles.Role {
	return roles.Assignable(actor.Role, actor.IsSuperuser())
}

// Assign replaces the user's role. Membership, the is_staff flag and the
// editor bindings change together or not at all.
func (s *RoleService) Assign(ctx context.Context, actor *Actor, userID uuid.UUID, roleName string) (*models.User, error) {
	role, err := roles.Parse(roleName)
	if err != nil {
		return nil, &ValidationError{Field: "role", Message: err.Error(), Err: err}
	}
	if err := s.perms.Require(ctx, actor, models.PermAssignRole); err != nil {
		return nil, err
	}
	if !roles.CanAssign(actor.Role, actor.IsSuperuser(), role) {
		return nil, fmt.Errorf("%w: %s may not assign %s", ErrPermissionDenied, actor.Role, role)
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if user.IsSuperuser && !actor.IsSuperuser() {
			return fmt.Errorf("%w: cannot change a superuser", ErrPermissionDenied)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("clear roles: %w", err)
		}
		membership := models.UserRole{UserID: userID, Role: role}
		if err := tx.Create(&membership).Error; err != nil {
			return fmt.Errorf("assign role: %w", err)
		}
		user.IsStaff = roles.IsStaff(role)
		if err := tx.Model(&user).Update("is_staff", user.IsStaff).Error; err != nil {
			return err
		}
		if err := rebuildEditorsForUser(tx, userID, role); err != nil {
			return err
		}
		user.Roles = []models.UserRole{membership}
		return recordActivity(tx, actor, ActionRoleAssigned, "user", userID, map[string]any{"role": role.String()})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type UserFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

// ListUsers pages through users with their role. Requires change_user_role.
func (s *RoleService) ListUsers(ctx context.Context, actor *Actor, f UserFilter) ([]models.User, int64, error) {
	if err := s.perms.Require(ctx, actor, models.PermAssignRole); err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	q := s.db.WithContext(ctx).Model(&models.User{})
	if f.Role != "" {
		role, err := roles.Parse(f.Role)
		if err != nil {
			return nil, 0, &ValidationError{Field: "role", Message: err.Error(), Err: err}
		}
		q = q.Where("id IN (?)", s.db.Model(&models.UserRole{}).Select("user_id").Where("role = ?", role))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	if err := q.Preload("Roles").Order("email ASC").Limit(f.Limit).Offset(f.Offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
