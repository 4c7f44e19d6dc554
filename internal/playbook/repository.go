package playbook

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrPlayNotFound is returned when a play does not exist on the team.
var ErrPlayNotFound = errors.New("play not found")

// ErrDuplicatePlayName is returned when the team already has a play with the same name.
var ErrDuplicatePlayName = errors.New("play name already exists")

// Repository provides team-scoped CRUD on the plays table.
type Repository interface {
	Create(ctx context.Context, p *Play) error
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*Play, error)
	List(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*ListResult, error)
	// Refs returns the id and name of every play on the team, alphabetically.
	Refs(ctx context.Context, teamID uuid.UUID) ([]Ref, error)
	Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Play, error)
	Delete(ctx context.Context, teamID, id uuid.UUID) error
}
