package tier

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTierNotFound is returned when a tier record is not found.
var ErrTierNotFound = errors.New("tier not found")

// ErrDuplicateTierName is returned when a tier with the same name already exists.
var ErrDuplicateTierName = errors.New("tier name already exists")

// ErrTierHasSubscriptions is returned when attempting to delete a tier that teams are subscribed to.
var ErrTierHasSubscriptions = errors.New("tier has subscriptions")

// Repository provides CRUD operations on the tiers table.
type Repository interface {
	Create(ctx context.Context, t *Tier) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tier, error)
	GetByName(ctx context.Context, name string) (*Tier, error)
	GetByStripePriceID(ctx context.Context, priceID string) (*Tier, error)
	List(ctx context.Context, activeOnly bool) ([]Tier, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Tier, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
