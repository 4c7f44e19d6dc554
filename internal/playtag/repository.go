package playtag

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrPlayInstanceNotFound is returned when a play instance does not exist on the team.
var ErrPlayInstanceNotFound = errors.New("play instance not found")

// Repository provides team-scoped persistence for play instances.
type Repository interface {
	Create(ctx context.Context, p *PlayInstance) error
	// CreateMany inserts all instances in one transaction.
	CreateMany(ctx context.Context, ps []PlayInstance) error
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*PlayInstance, error)
	ListByGame(ctx context.Context, teamID, gameID uuid.UUID, filter ListFilter) ([]PlayInstance, error)
	// ListBySeason returns every instance on games whose kickoff falls in season.
	ListBySeason(ctx context.Context, teamID uuid.UUID, season int) ([]PlayInstance, error)
	// Update writes every mutable column of p.
	Update(ctx context.Context, p *PlayInstance) error
	Delete(ctx context.Context, teamID, id uuid.UUID) error
	DeleteBySource(ctx context.Context, teamID, gameID uuid.UUID, source string) (int64, error)
}
