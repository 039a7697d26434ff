package roles

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRole is returned when a role string is not part of the enumeration.
var ErrInvalidRole = errors.New("invalid role")

// Role is the closed set of user roles. Every user holds exactly one.
type Role string

const (
	Admin           Role = "ADMIN"
	Coordinator     Role = "COORDINATOR"
	Doctor          Role = "DOCTOR"
	Nurse           Role = "NURSE"
	Psychologist    Role = "PSYCHOLOGIST"
	Nutritionist    Role = "NUTRITIONIST"
	Physiotherapist Role = "PHYSIOTHERAPIST"
	Trainer         Role = "TRAINER"
	Patient         Role = "PATIENT"
)

// All lists every valid role in display order.
var All = []Role{
	Admin,
	Coordinator,
	Doctor,
	Nurse,
	Psychologist,
	Nutritionist,
	Physiotherapist,
	Trainer,
	Patient,
}

var labels = map[Role]string{
	Admin:           "Administrator",
	Coordinator:     "Coordinator",
	Doctor:          "Doctor",
	Nurse:           "Nurse",
	Psychologist:    "Psychologist",
	Nutritionist:    "Nutritionist",
	Physiotherapist: "Physiotherapist",
	Trainer:         "Trainer",
	Patient:         "Patient",
}

// Parse accepts a role name in any case. Unknown names yield ErrInvalidRole.
func Parse(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// ParseAll parses a list of role names, failing on the first invalid one.
func ParseAll(list []string) ([]Role, error) {
	out := make([]Role, 0, len(list))
	seen := make(map[Role]bool, len(list))
	for _, s := range list {
		r, err := Parse(s)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

func (r Role) Valid() bool {
	_, ok := labels[r]
	return ok
}

func (r Role) String() string { return string(r) }

func (r Role) Label() string {
	if l, ok := labels[r]; ok {
		return l
	}
	return string(r)
}

// IsProfessional reports whether the role belongs to a clinician or coach.
func IsProfessional(r Role) bool {
	switch r {
	case Doctor, Nurse, Psychologist, Nutritionist, Physiotherapist, Trainer:
		return true
	case Admin, Coordinator, Patient:
		return false
	}
	return false
}

// IsStaff reports whether the role grants back-office access. Staff bypass
// per-template editor lists.
func IsStaff(r Role) bool {
	switch r {
	case Admin, Coordinator:
		return true
	case Doctor, Nurse, Psychologist, Nutritionist, Physiotherapist, Trainer, Patient:
		return false
	}
	return false
}

// Default is the role assigned at account creation.
func Default() Role { return Patient }

// Professionals returns every professional role.
func Professionals() []Role {
	out := make([]Role, 0, 6)
	for _, r := range All {
		if IsProfessional(r) {
			out = append(out, r)
		}
	}
	return out
}

// Assignable returns the roles an actor holding role r may hand out.
// Superusers may assign anything.
func Assignable(r Role, superuser bool) []Role {
	if superuser {
		return append([]Role(nil), All...)
	}
	switch r {
	case Admin:
		out := make([]Role, 0, len(All)-1)
		for _, candidate := range All {
			if candidate != Admin {
				out = append(out, candidate)
			}
		}
		return out
	case Coordinator:
		return append(Professionals(), Patient)
	}
	return nil
}

// CanAssign reports whether target is in Assignable(r, superuser).
func CanAssign(r Role, superuser bool, target Role) bool {
	for _, candidate := range Assignable(r, superuser) {
		if candidate == target {
			return true
		}
	}
	return false
}

// Contains reports whether list holds r.
func Contains(list []Role, r Role) bool {
	for _, candidate := range list {
		if candidate == r {
			return true
		}
	}
	return false
}
