package services

import (
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrBusy             = database.ErrBusy
	ErrInvalidRole      = roles.ErrInvalidRole

	ErrTemplateNotFound       = fmt.Errorf("template %w", ErrNotFound)
	ErrInstanceNotFound       = fmt.Errorf("category instance %w", ErrNotFound)
	ErrUserNotFound           = fmt.Errorf("user %w", ErrNotFound)

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrTemplateExists     = errors.New("a template with this name already exists")
)

// ValidationError reports malformed input. It is raised before any write.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
