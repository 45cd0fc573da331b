package domain

import "github.com/google/uuid"

// Identity is the party a booking is attributed to: a registered user or a
// guest identified by name and email. The two forms are mutually exclusive;
// quota accounting keys on the user id for registered identities and on the
// guest email otherwise.
type Identity struct {
	userID     uuid.UUID
	guestName  string
	guestEmail string
	registered bool
}

func RegisteredIdentity(userID uuid.UUID) Identity {
	return Identity{userID: userID, registered: true}
}

func GuestIdentity(name, email string) Identity {
	return Identity{guestName: name, guestEmail: email}
}

func (i Identity) IsRegistered() bool { return i.registered }

// UserID is the registered user id; zero for guests.
func (i Identity) UserID() uuid.UUID { return i.userID }

func (i Identity) GuestName() string { return i.guestName }

func (i Identity) GuestEmail() string { return i.guestEmail }
