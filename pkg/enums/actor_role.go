package enums

import "fmt"

// ActorRole identifies the authenticated caller's role.
type ActorRole string

const (
	ActorRoleApplicant ActorRole = "applicant"
	ActorRoleReviewer  ActorRole = "reviewer"
	ActorRoleAdmin     ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleApplicant,
	ActorRoleReviewer,
	ActorRoleAdmin,
}

// String returns the literal string for the role.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the role is known.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role can read documents it does not own.
func (a ActorRole) IsStaff() bool {
	return a == ActorRoleReviewer || a == ActorRoleAdmin
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
