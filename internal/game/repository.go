package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrGameNotFound is returned when a game does not exist on the team.
var ErrGameNotFound = errors.New("game not found")

// Repository provides team-scoped CRUD on the games table.
type Repository interface {
	Create(ctx context.Context, g *Game) error
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*Game, error)
	List(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*ListResult, error)
	Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Game, error)
	Delete(ctx context.Context, teamID, id uuid.UUID) error
}
