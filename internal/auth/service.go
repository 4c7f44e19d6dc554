package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/huddlehq/huddle/internal/team"
)

// ErrInvalidCredentials is returned when an email/password pair does not match an active user.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrWeakPassword is returned when a password does not meet the minimum length.
var ErrWeakPassword = errors.New("password must be at least 8 characters")

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Session is a freshly issued login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Service provides authentication operations.
type Service struct {
	userRepo   UserRepository
	teamRepo   team.Repository
	tokens     *TokenManager
	bcryptCost int
}

// NewService creates a new auth Service.
func NewService(userRepo UserRepository, teamRepo team.Repository, tokens *TokenManager, bcryptCost int) *Service {
	return &Service{
		userRepo:   userRepo,
		teamRepo:   teamRepo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// HashPassword validates and bcrypt-hashes a password.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// IssueSession creates a session token for an already-verified user.
func (s *Service) IssueSession(u *User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Login verifies an email/password pair and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if u.DisabledAt != nil {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.IssueSession(u)
}

// Authenticate resolves a session token to an Identity. Disabled or deleted
// users are rejected with ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if u.DisabledAt != nil {
		return nil, ErrInvalidToken
	}

	return s.buildIdentity(ctx, u)
}

// CreatePlatformAdmin creates a user with platform-admin rights and no team.
func (s *Service) CreatePlatformAdmin(ctx context.Context, email, name, password string) (*User, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:           email,
		Name:            name,
		PasswordHash:    hash,
		IsPlatformAdmin: true,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// buildIdentity constructs an Identity from a User, fetching team info if applicable.
func (s *Service) buildIdentity(ctx context.Context, u *User) (*Identity, error) {
	identity := &Identity{
		UserID:          u.ID,
		Email:           u.Email,
		Name:            u.Name,
		TeamID:          u.TeamID,
		Role:            u.Role,
		IsPlatformAdmin: u.IsPlatformAdmin,
	}

	if u.TeamID != nil {
		t, err := s.teamRepo.GetByID(ctx, *u.TeamID)
		if err != nil {
			return nil, fmt.Errorf("fetching team for identity: %w", err)
		}
		identity.TeamName = &t.Name
	}

	return identity, nil
}
