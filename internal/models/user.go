package models

import (
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account of the platform: patient, professional or staff.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password     string     `gorm:"not null" json:"-"`
	FirstName    string     `gorm:"size:100" json:"first_name"`
	LastName     string     `gorm:"size:100" json:"last_name"`
	IsStaff      bool       `gorm:"not null" json:"is_staff"`
	IsSuperuser  bool       `gorm:"not null" json:"is_superuser"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	ProfileImage string     `gorm:"size:500" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Roles        []UserRole `gorm:"foreignKey:UserID" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Role returns the user's single active role. Roles must be preloaded;
// a user without membership rows falls back to the default role.
func (u *User) Role() roles.Role {
	if len(u.Roles) == 0 {
		return roles.Default()
	}
	return u.Roles[0].Role
}

// UserRole is a role membership row. The role service keeps exactly one per user.
type UserRole struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_roles_user_role" json:"user_id"`
	Role      roles.Role `gorm:"size:30;not null;uniqueIndex:idx_user_roles_user_role;index" json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// GroupPermission grants a capability to every member of a role group.
type GroupPermission struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Group    roles.Role `gorm:"column:group_role;size:30;not null;uniqueIndex:idx_group_permissions_group_code" json:"group"`
	Codename string     `gorm:"size:100;not null;uniqueIndex:idx_group_permissions_group_code" json:"codename"`
}

func (p *GroupPermission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// UserPermission grants a capability to a single user.
type UserPermission struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_permissions_user_code" json:"user_id"`
	Codename string    `gorm:"size:100;not null;uniqueIndex:idx_user_permissions_user_code" json:"codename"`
}

func (p *UserPermission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
