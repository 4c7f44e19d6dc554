package film

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrVideoNotFound is returned when a video does not exist on the team.
var ErrVideoNotFound = errors.New("video not found")

// Repository provides team-scoped persistence for videos.
type Repository interface {
	Create(ctx context.Context, v *Video) error
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*Video, error)
	ListByGame(ctx context.Context, teamID, gameID uuid.UUID) ([]Video, error)
	CountByGame(ctx context.Context, teamID, gameID uuid.UUID) (int, error)
	Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Video, error)
	Delete(ctx context.Context, teamID, id uuid.UUID) error
}
