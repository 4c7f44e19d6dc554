package practice

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrPlanNotFound is returned when a practice plan does not exist on the team.
var ErrPlanNotFound = errors.New("practice plan not found")

// ErrPeriodsExceedDuration is returned when the periods add up to more than the practice length.
var ErrPeriodsExceedDuration = errors.New("periods exceed practice duration")

// Repository provides team-scoped CRUD on the practice_plans table.
type Repository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*Plan, error)
	List(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*ListResult, error)
	Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Plan, error)
	Delete(ctx context.Context, teamID, id uuid.UUID) error
}
