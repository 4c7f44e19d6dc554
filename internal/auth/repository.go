package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when a user with the same email already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository provides operations on the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]User, error)
	CountActiveByTeam(ctx context.Context, teamID uuid.UUID) (int, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Disable(ctx context.Context, id uuid.UUID) error
	DeleteByTeam(ctx context.Context, teamID uuid.UUID) error
	CountAll(ctx context.Context) (int, error)
}
