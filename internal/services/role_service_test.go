package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
)

func TestAssignRoleRejectsInvalidRoleWithoutChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.newUser(t, testAdminEmail, roles.Admin)
	patient := env.newUser(t, "p@example.com", roles.Patient)

	_, err := env.roles.Assign(ctx, admin, patient.ID(), "WIZARD")
	wantErr(t, err, ErrInvalidRole)
	wantValidation(t, err, "role")

	reloaded, err := env.perms.LoadActor(ctx, patient.ID())
	if err != nil {
		t.Fatalf("LoadActor: %v", err)
	}
	if reloaded.Role != roles.Patient || reloaded.User.IsStaff {
		t.Fatalf("user changed by rejected assignment: role=%s staff=%v", reloaded.Role, reloaded.User.IsStaff)
	}
	if got := env.count(t, &models.UserRole{}, "user_id = ?", patient.ID()); got != 1 {
		t.Fatalf("role memberships: want=1 got=%d", got)
	}
}

func TestAssignRoleUpdatesStaffAndEditors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.newUser(t, testAdminEmail, roles.Admin)
	patient := env.newUser(t, "p@example.com", roles.Patient)
	user := env.newUser(t, "u@example.com", roles.Patient)
	tmpl := env.createTemplate(t, templateRequest("Diabetes Check", "SELF", "DOCTOR"))

	if _, err := env.roles.Assign(ctx, admin, user.ID(), "doctor"); err != nil {
		t.Fatalf("Assign doctor: %v", err)
	}
	if got := env.count(t, &models.InstanceEditor{}, "user_id = ?", user.ID()); got != 3 {
		t.Fatalf("doctor editor bindings: want=3 got=%d", got)
	}

	assigned, err := env.roles.Assign(ctx, admin, user.ID(), "COORDINATOR")
	if err != nil {
		t.Fatalf("Assign coordinator: %v", err)
	}
	if !assigned.IsStaff || assigned.Role() != roles.Coordinator {
		t.Fatalf("coordinator: staff=%v role=%s", assigned.IsStaff, assigned.Role())
	}
	if got := env.count(t, &models.InstanceEditor{}, "user_id = ?", user.ID()); got != 0 {
		t.Fatalf("coordinator editor bindings: want=0 got=%d", got)
	}
	coordinator, err := env.perms.LoadActor(ctx, user.ID())
	if err != nil {
		t.Fatalf("LoadActor: %v", err)
	}
	if !CanEdit(coordinator, tmpl) {
		t.Fatalf("staff must edit every writable template")
	}

	_, err = env.roles.Assign(ctx, coordinator, patient.ID(), "ADMIN")
	wantErr(t, err, ErrPermissionDenied)
	if _, err := env.roles.Assign(ctx, coordinator, patient.ID(), "NURSE"); err != nil {
		t.Fatalf("coordinator assigns nurse: %v", err)
	}

	_, err = env.roles.Assign(ctx, coordinator, admin.ID(), "PATIENT")
	wantErr(t, err, ErrPermissionDenied)

	_, err = env.roles.Assign(ctx, patient, user.ID(), "PATIENT")
	wantErr(t, err, ErrPermissionDenied)

	_, err = env.roles.Assign(ctx, admin, uuid.New(), "PATIENT")
	wantErr(t, err, ErrUserNotFound)
}

func TestAssignableRoles(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser(t, testAdminEmail, roles.Admin)
	coordinator := env.newUser(t, "coord@example.com", roles.Coordinator)

	if got := env.roles.Assignable(admin); len(got) != len(roles.All) {
		t.Fatalf("superuser assignable: want=%d got=%d", len(roles.All), len(got))
	}
	got := env.roles.Assignable(coordinator)
	if roles.Contains(got, roles.Admin) || roles.Contains(got, roles.Coordinator) || !roles.Contains(got, roles.Patient) {
		t.Fatalf("coordinator assignable: %v", got)
	}
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.newUser(t, testAdminEmail, roles.Admin)
	env.newUser(t, "alice@example.com", roles.Doctor)
	env.newUser(t, "bob@example.com", roles.Patient)
	patient := env.newUser(t, "carol@example.com", roles.Patient)

	users, total, err := env.roles.ListUsers(ctx, admin, UserFilter{Role: "patient"})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 2 || len(users) != 2 {
		t.Fatalf("patients: want=2 got total=%d len=%d", total, len(users))
	}

	users, total, err = env.roles.ListUsers(ctx, admin, UserFilter{Search: "ALICE"})
	if err != nil {
		t.Fatalf("ListUsers (search): %v", err)
	}
	if total != 1 || users[0].Role() != roles.Doctor {
		t.Fatalf("search: total=%d", total)
	}

	_, _, err = env.roles.ListUsers(ctx, patient, UserFilter{})
	wantErr(t, err, ErrPermissionDenied)
	_, _, err = env.roles.ListUsers(ctx, admin, UserFilter{Role: "WIZARD"})
	wantValidation(t, err, "role")
}
