package models

import "github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"

// Permission codenames checked by the permission gate.
const (
	PermChangeTemplate       = "change_categorytemplate"
	PermViewInstance         = "view_categoryinstance"
	PermChangeInstance       = "change_categoryinstance"
	PermChangeEvaluation     = "change_evaluationform"
	PermChangeRecommendation = "change_recommendation"
	PermAssignRole           = "change_user_role"
	PermViewActivity         = "view_activitylog"
)

// AllPermissions lists every codename.
var AllPermissions = []string{
	PermChangeTemplate,
	PermViewInstance,
	PermChangeInstance,
	PermChangeEvaluation,
	PermChangeRecommendation,
	PermAssignRole,
	PermViewActivity,
}

// DefaultGroupPermissions is the capability set seeded for each role group.
func DefaultGroupPermissions() map[roles.Role][]string {
	clinical := []string{
		PermViewInstance,
		PermChangeInstance,
		PermChangeEvaluation,
		PermChangeRecommendation,
	}
	out := map[roles.Role][]string{
		roles.Admin: AllPermissions,
		roles.Coordinator: {
			PermChangeTemplate,
			PermViewInstance,
			PermAssignRole,
			PermViewActivity,
		},
		roles.Patient: nil,
	}
	for _, r := range roles.Professionals() {
		out[r] = clinical
	}
	return out
}
