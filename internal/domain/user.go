package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Role      Role
	Enabled   bool
	CreatedAt time.Time
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u User) IsOrganizer() bool { return u.Role == RoleOrganizer }

// CanManageEvents reports whether the user may create events and edit events
// they own.
func (u User) CanManageEvents() bool { return u.IsAdmin() || u.IsOrganizer() }

// CanEditEvent reports whether the user may mutate the given event.
func (u User) CanEditEvent(e Event) bool {
	return u.IsAdmin() || (u.IsOrganizer() && e.CreatedBy == u.ID)
}
