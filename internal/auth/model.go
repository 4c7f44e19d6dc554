package auth

import (
	"time"

	"github.com/google/uuid"
)

// Team roles. A user belongs to at most one team; platform admins have none.
const (
	RoleHeadCoach = "head_coach"
	RoleCoach     = "coach"
	RoleViewer    = "viewer"
)

// ValidRoles lists every assignable team role.
var ValidRoles = []string{RoleHeadCoach, RoleCoach, RoleViewer}

// User represents a row in the users table.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	PasswordHash    string
	TeamID          *uuid.UUID // nil for platform admins
	Role            *string    // nil for platform admins
	IsPlatformAdmin bool
	CreatedAt       time.Time
	DisabledAt      *time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID          uuid.UUID
	Email           string
	Name            string
	TeamID          *uuid.UUID
	TeamName        *string
	Role            *string
	IsPlatformAdmin bool
}

// HasRole reports whether the identity holds one of the given team roles.
func (i *Identity) HasRole(roles ...string) bool {
	if i == nil || i.Role == nil {
		return false
	}
	for _, r := range roles {
		if *i.Role == r {
			return true
		}
	}
	return false
}
