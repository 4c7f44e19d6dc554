// Package account implements signup, staff management and the platform-admin
// team operations that span several domain packages.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/team"
	"github.com/huddlehq/huddle/internal/tier"
)

// TrialTier is the tier a new team trials.
const TrialTier = "plus"

// ErrStaffLimitReached is returned when the team's tier allows no more active staff.
var ErrStaffLimitReached = errors.New("staff limit reached for tier")

// ErrCannotRemoveSelf is returned when a coach tries to remove their own account.
var ErrCannotRemoveSelf = errors.New("cannot remove yourself")

// ErrInvalidRole is returned for an unknown team role.
var ErrInvalidRole = errors.New("invalid role")

// Billing is the subset of the billing service accounts depend on.
type Billing interface {
	StartTrial(ctx context.Context, teamID uuid.UUID, tierName string, days int) (*billing.Subscription, error)
	Tier(ctx context.Context, teamID uuid.UUID) (*tier.Tier, error)
}

// FilmCleaner removes a team's stored film.
type FilmCleaner interface {
	RemoveTeamObjects(ctx context.Context, teamID uuid.UUID) (int, error)
}

// SignupInput holds the fields of a new-team signup.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	TeamName string
	Level    string
}

// StaffInput holds the fields of a new staff account.
type StaffInput struct {
	Email    string
	Name     string
	Role     string
	Password string
}

// Service implements account operations.
type Service struct {
	auth      *auth.Service
	users     auth.UserRepository
	teams     team.Repository
	billing   Billing
	film      FilmCleaner
	audit     audit.Recorder
	trialDays int
	now       func() time.Time
}

// NewService creates an account Service. film may be nil when storage is not configured.
func NewService(authSvc *auth.Service, users auth.UserRepository, teams team.Repository, b Billing, film FilmCleaner, recorder audit.Recorder, trialDays int) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		auth:      authSvc,
		users:     users,
		teams:     teams,
		billing:   b,
		film:      film,
		audit:     recorder,
		trialDays: trialDays,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Signup creates a team, its head coach and a trial subscription, then signs
// the coach in. The team is removed again if a later step fails.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*auth.Session, *team.Team, error) {
	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}
	email := normalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, auth.ErrDuplicateEmail
	} else if !errors.Is(err, auth.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("checking email: %w", err)
	}

	t := &team.Team{Name: strings.TrimSpace(in.TeamName), Level: in.Level, Season: s.now().Year()}
	if err := s.teams.Create(ctx, t); err != nil {
		return nil, nil, err
	}

	role := auth.RoleHeadCoach
	u := &auth.User{Email: email, Name: in.Name, PasswordHash: hash, TeamID: &t.ID, Role: &role}
	if err := s.users.Create(ctx, u); err != nil {
		s.rollbackTeam(ctx, t.ID)
		return nil, nil, err
	}

	if _, err := s.billing.StartTrial(ctx, t.ID, TrialTier, s.trialDays); err != nil {
		s.rollbackTeam(ctx, t.ID)
		return nil, nil, fmt.Errorf("starting trial: %w", err)
	}

	session, err := s.auth.IssueSession(u)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("team signed up", "team", t.ID, "user", u.ID)
	return session, t, nil
}

func (s *Service) rollbackTeam(ctx context.Context, teamID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	if err := s.users.DeleteByTeam(ctx, teamID); err != nil {
		slog.Error("signup rollback: deleting users", "team", teamID, "error", err)
	}
	if err := s.teams.Delete(ctx, teamID); err != nil {
		slog.Error("signup rollback: deleting team", "team", teamID, "error", err)
	}
}

// Staff lists every account on the team, disabled ones included.
func (s *Service) Staff(ctx context.Context, teamID uuid.UUID) ([]auth.User, error) {
	return s.users.ListByTeam(ctx, teamID)
}

// CreateStaff adds an account to the actor's team, enforcing the tier's staff limit.
func (s *Service) CreateStaff(ctx context.Context, actor *auth.Identity, in StaffInput) (*auth.User, error) {
	if actor.TeamID == nil {
		return nil, team.ErrTeamNotFound
	}
	teamID := *actor.TeamID
	if !slices.Contains(auth.ValidRoles, in.Role) {
		return nil, ErrInvalidRole
	}

	t, err := s.billing.Tier(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("loading tier: %w", err)
	}
	if t.MaxStaff > 0 {
		active, err := s.users.CountActiveByTeam(ctx, teamID)
		if err != nil {
			return nil, err
		}
		if active >= t.MaxStaff {
			return nil, ErrStaffLimitReached
		}
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	u := &auth.User{Email: normalizeEmail(in.Email), Name: in.Name, PasswordHash: hash, TeamID: &teamID, Role: &role}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: &actor.UserID, TeamID: &teamID, Action: audit.ActionStaffCreate,
		TargetType: "user", TargetID: u.ID.String(),
		Details: map[string]any{"email": u.Email, "role": role},
	})
	return u, nil
}

// RemoveStaff disables an account on the actor's team.
func (s *Service) RemoveStaff(ctx context.Context, actor *auth.Identity, userID uuid.UUID) error {
	if actor.TeamID == nil {
		return auth.ErrUserNotFound
	}
	if userID == actor.UserID {
		return ErrCannotRemoveSelf
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.TeamID == nil || *u.TeamID != *actor.TeamID {
		return auth.ErrUserNotFound
	}
	if err := s.users.Disable(ctx, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: &actor.UserID, TeamID: actor.TeamID, Action: audit.ActionStaffRemove,
		TargetType: "user", TargetID: userID.String(),
		Details: map[string]any{"email": u.Email},
	})
	return nil
}

// UpdateTeam applies a head coach's changes to their team.
func (s *Service) UpdateTeam(ctx context.Context, actor *auth.Identity, fields team.UpdateFields) (*team.Team, error) {
	if actor.TeamID == nil {
		return nil, team.ErrTeamNotFound
	}
	t, err := s.teams.Update(ctx, *actor.TeamID, fields)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: &actor.UserID, TeamID: &t.ID, Action: audit.ActionTeamUpdate,
		TargetType: "team", TargetID: t.ID.String(),
		Details: map[string]any{"name": t.Name, "level": t.Level, "season": t.Season},
	})
	return t, nil
}

// DeleteTeam removes a team. Without force, a team that still has users is
// refused with team.ErrTeamHasUsers. With force, users are deleted first.
// Stored film is removed once the rows are gone.
func (s *Service) DeleteTeam(ctx context.Context, actorID uuid.UUID, teamID uuid.UUID, force bool) error {
	t, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if force {
		if err := s.users.DeleteByTeam(ctx, teamID); err != nil {
			return err
		}
	}
	if err := s.teams.Delete(ctx, teamID); err != nil {
		return err
	}

	if s.film != nil {
		n, err := s.film.RemoveTeamObjects(ctx, teamID)
		if err != nil {
			slog.Warn("removing team film", "team", teamID, "removed", n, "error", err)
		}
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: &actorID, Action: audit.ActionTeamDelete,
		TargetType: "team", TargetID: teamID.String(),
		Details: map[string]any{"name": t.Name, "force": force},
	})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
