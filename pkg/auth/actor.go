package auth

import (
	"github.com/google/uuid"

	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

// Actor is the authenticated caller as seen by services.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// IsStaff reports whether the actor can read documents it does not own.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}
