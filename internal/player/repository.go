package player

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrPlayerNotFound is returned when a player does not exist on the team.
var ErrPlayerNotFound = errors.New("player not found")

// ErrDuplicateJersey is returned when another non-inactive player already wears the number.
var ErrDuplicateJersey = errors.New("jersey number already in use")

// Repository provides team-scoped CRUD on the players table.
type Repository interface {
	Create(ctx context.Context, p *Player) error
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*Player, error)
	List(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*ListResult, error)
	ListActive(ctx context.Context, teamID uuid.UUID) ([]Player, error)
	Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Player, error)
	Delete(ctx context.Context, teamID, id uuid.UUID) error
}
