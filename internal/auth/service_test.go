package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/team"
)

// --- Mocks ---

type memUserRepo struct {
	users map[uuid.UUID]*auth.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*auth.User)}
}

func (m *memUserRepo) Create(_ context.Context, u *auth.User) error {
	for _, existing := range m.users {
		if existing.Email == strings.ToLower(u.Email) {
			return auth.ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = time.Now().UTC()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUserRepo) ListByTeam(_ context.Context, teamID uuid.UUID) ([]auth.User, error) {
	var out []auth.User
	for _, u := range m.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUserRepo) CountActiveByTeam(ctx context.Context, teamID uuid.UUID) (int, error) {
	users, _ := m.ListByTeam(ctx, teamID)
	return len(users), nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUserRepo) Disable(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	now := time.Now()
	u.DisabledAt = &now
	return nil
}

func (m *memUserRepo) DeleteByTeam(_ context.Context, _ uuid.UUID) error { return nil }

func (m *memUserRepo) CountAll(_ context.Context) (int, error) { return len(m.users), nil }

type stubTeamRepo struct {
	team.Repository
	teams map[uuid.UUID]*team.Team
}

func (s *stubTeamRepo) GetByID(_ context.Context, id uuid.UUID) (*team.Team, error) {
	if t, ok := s.teams[id]; ok {
		return t, nil
	}
	return nil, team.ErrTeamNotFound
}

func newService(t *testing.T) (*auth.Service, *memUserRepo, *team.Team) {
	t.Helper()
	tm := &team.Team{ID: uuid.New(), Name: "Riverside Rams", Level: team.LevelHighSchool, Season: 2026}
	users := newMemUserRepo()
	teams := &stubTeamRepo{teams: map[uuid.UUID]*team.Team{tm.ID: tm}}
	svc := auth.NewService(users, teams, auth.NewTokenManager("test-secret", time.Hour), bcrypt.MinCost)
	return svc, users, tm
}

func createCoach(t *testing.T, svc *auth.Service, users *memUserRepo, tm *team.Team, email, password string) *auth.User {
	t.Helper()
	hash, err := svc.HashPassword(password)
	require.NoError(t, err)
	role := auth.RoleHeadCoach
	u := &auth.User{Email: email, Name: "Coach", PasswordHash: hash, TeamID: &tm.ID, Role: &role}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

// --- Tests ---

func TestHashPassword_TooShort(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.HashPassword("short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestLogin_Success(t *testing.T) {
	svc, users, tm := newService(t)
	u := createCoach(t, svc, users, tm, "Coach@Example.com", "touchdown1")

	session, err := svc.Login(context.Background(), "coach@example.com", "touchdown1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, u.ID, session.User.ID)
	assert.True(t, session.ExpiresAt.After(time.Now()))
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, users, tm := newService(t)
	createCoach(t, svc, users, tm, "coach@example.com", "touchdown1")

	_, err := svc.Login(context.Background(), "coach@example.com", "fieldgoal")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "touchdown1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_DisabledUser(t *testing.T) {
	svc, users, tm := newService(t)
	u := createCoach(t, svc, users, tm, "coach@example.com", "touchdown1")
	require.NoError(t, users.Disable(context.Background(), u.ID))

	_, err := svc.Login(context.Background(), "coach@example.com", "touchdown1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestAuthenticate_BuildsIdentityWithTeam(t *testing.T) {
	svc, users, tm := newService(t)
	u := createCoach(t, svc, users, tm, "coach@example.com", "touchdown1")

	session, err := svc.IssueSession(u)
	require.NoError(t, err)

	identity, err := svc.Authenticate(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.UserID)
	require.NotNil(t, identity.TeamName)
	assert.Equal(t, "Riverside Rams", *identity.TeamName)
	assert.True(t, identity.HasRole(auth.RoleHeadCoach))
	assert.False(t, identity.HasRole(auth.RoleViewer))
}

func TestAuthenticate_DisabledAfterIssue(t *testing.T) {
	svc, users, tm := newService(t)
	u := createCoach(t, svc, users, tm, "coach@example.com", "touchdown1")
	session, err := svc.IssueSession(u)
	require.NoError(t, err)

	require.NoError(t, users.Disable(context.Background(), u.ID))

	_, err = svc.Authenticate(context.Background(), session.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Authenticate(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestCreatePlatformAdmin(t *testing.T) {
	svc, users, _ := newService(t)

	u, err := svc.CreatePlatformAdmin(context.Background(), "admin@huddle.app", "Admin", "supersecret")
	require.NoError(t, err)
	assert.True(t, u.IsPlatformAdmin)
	assert.Nil(t, u.TeamID)

	identity, err := func() (*auth.Identity, error) {
		s, err := svc.IssueSession(u)
		if err != nil {
			return nil, err
		}
		return svc.Authenticate(context.Background(), s.Token)
	}()
	require.NoError(t, err)
	assert.True(t, identity.IsPlatformAdmin)
	assert.Nil(t, identity.TeamName)

	_, err = svc.CreatePlatformAdmin(context.Background(), "ADMIN@huddle.app", "Admin", "supersecret")
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	assert.Len(t, users.users, 1)
}
