package comms

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrContactNotFound is returned when a contact does not exist on the team.
var ErrContactNotFound = errors.New("contact not found")

// ErrUnknownPlayer is returned when a contact references a player outside the team.
var ErrUnknownPlayer = errors.New("player does not exist")

// Repository stores contacts and the message history.
type Repository interface {
	CreateContact(ctx context.Context, c *Contact) error
	GetContact(ctx context.Context, teamID, id uuid.UUID) (*Contact, error)
	ListContacts(ctx context.Context, teamID uuid.UUID) ([]Contact, error)
	UpdateContact(ctx context.Context, teamID, id uuid.UUID, fields ContactUpdate) (*Contact, error)
	DeleteContact(ctx context.Context, teamID, id uuid.UUID) error

	// Recipients returns contacts that have not opted out. A nil playerIDs
	// selects every contact on the team.
	Recipients(ctx context.Context, teamID uuid.UUID, playerIDs []uuid.UUID) ([]Contact, error)

	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*MessageList, error)
}
