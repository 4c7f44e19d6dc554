package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/huddlehq/huddle/internal/account"
	"github.com/huddlehq/huddle/internal/api/handler"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/team"
)

type mockSigner struct {
	signupFn func(ctx context.Context, in account.SignupInput) (*auth.Session, *team.Team, error)
}

func (m *mockSigner) Signup(ctx context.Context, in account.SignupInput) (*auth.Session, *team.Team, error) {
	return m.signupFn(ctx, in)
}

type mockLogin struct {
	loginFn func(ctx context.Context, email, password string) (*auth.Session, error)
}

func (m *mockLogin) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	return m.loginFn(ctx, email, password)
}

func sampleSession(email string) *auth.Session {
	teamID := testTeamID
	role := auth.RoleHeadCoach
	return &auth.Session{
		Token:     "signed.jwt.token",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
		User: &auth.User{
			ID:        testUserID,
			Email:     email,
			Name:      "Pat Coach",
			TeamID:    &teamID,
			Role:      &role,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func signupBody(t *testing.T) []byte {
	return mustJSON(t, map[string]interface{}{
		"email":    "coach@example.com",
		"password": "touchdown1",
		"name":     "Pat Coach",
		"teamName": "Wildcats",
		"level":    "high_school",
	})
}

// ===== POST /auth/signup =====

func TestSignup_Success(t *testing.T) {
	t.Parallel()

	signer := &mockSigner{
		signupFn: func(_ context.Context, in account.SignupInput) (*auth.Session, *team.Team, error) {
			assert.Equal(t, "Wildcats", in.TeamName)
			assert.Equal(t, team.LevelHighSchool, in.Level)
			now := time.Now().UTC()
			return sampleSession(in.Email), &team.Team{ID: testTeamID, Name: in.TeamName, Level: in.Level, Season: 2026, CreatedAt: now, UpdatedAt: now}, nil
		},
	}
	h := handler.NewAuthHandler(signer, &mockLogin{})

	req, w := makeChiRequest(http.MethodPost, "/auth/signup", signupBody(t), "/auth/signup", nil)
	h.Signup(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "signed.jwt.token", data["token"])
	assert.Equal(t, "Wildcats", data["team"].(map[string]interface{})["name"])
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "head_coach", user["role"])
	assert.NotContains(t, user, "passwordHash")
}

func TestSignup_ShortPassword(t *testing.T) {
	t.Parallel()

	h := handler.NewAuthHandler(&mockSigner{}, &mockLogin{})

	body := mustJSON(t, map[string]interface{}{
		"email": "coach@example.com", "password": "short", "name": "Pat",
		"teamName": "Wildcats", "level": "high_school",
	})
	req, w := makeChiRequest(http.MethodPost, "/auth/signup", body, "/auth/signup", nil)
	h.Signup(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestSignup_Conflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"duplicate email", auth.ErrDuplicateEmail, "DUPLICATE_EMAIL"},
		{"duplicate team", team.ErrDuplicateTeamName, "DUPLICATE_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			signer := &mockSigner{
				signupFn: func(_ context.Context, _ account.SignupInput) (*auth.Session, *team.Team, error) {
					return nil, nil, tt.err
				},
			}
			h := handler.NewAuthHandler(signer, &mockLogin{})

			req, w := makeChiRequest(http.MethodPost, "/auth/signup", signupBody(t), "/auth/signup", nil)
			h.Signup(w, req)

			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

// ===== POST /auth/login =====

func TestLogin_NormalizesEmail(t *testing.T) {
	t.Parallel()

	login := &mockLogin{
		loginFn: func(_ context.Context, email, password string) (*auth.Session, error) {
			assert.Equal(t, "coach@example.com", email)
			assert.Equal(t, "touchdown1", password)
			return sampleSession(email), nil
		},
	}
	h := handler.NewAuthHandler(&mockSigner{}, login)

	body := mustJSON(t, map[string]interface{}{"email": "Coach@Example.com", "password": "touchdown1"})
	req, w := makeChiRequest(http.MethodPost, "/auth/login", body, "/auth/login", nil)
	h.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "signed.jwt.token", data["token"])
	assert.NotContains(t, data, "team")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	login := &mockLogin{
		loginFn: func(_ context.Context, _, _ string) (*auth.Session, error) {
			return nil, auth.ErrInvalidCredentials
		},
	}
	h := handler.NewAuthHandler(&mockSigner{}, login)

	body := mustJSON(t, map[string]interface{}{"email": "coach@example.com", "password": "wrong-password"})
	req, w := makeChiRequest(http.MethodPost, "/auth/login", body, "/auth/login", nil)
	h.Login(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestLogin_InternalError(t *testing.T) {
	t.Parallel()

	login := &mockLogin{
		loginFn: func(_ context.Context, _, _ string) (*auth.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := handler.NewAuthHandler(&mockSigner{}, login)

	body := mustJSON(t, map[string]interface{}{"email": "coach@example.com", "password": "x"})
	req, w := makeChiRequest(http.MethodPost, "/auth/login", body, "/auth/login", nil)
	h.Login(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

// ===== GET /api/v1/me =====

func TestMe_ReturnsIdentity(t *testing.T) {
	t.Parallel()

	h := handler.NewAuthHandler(&mockSigner{}, &mockLogin{})

	req, w := makeChiRequest(http.MethodGet, "/api/v1/me", nil, "/api/v1/me", nil)
	h.Me(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, testUserID.String(), data["id"])
	assert.Equal(t, testTeamID.String(), data["teamId"])
	assert.Equal(t, "Wildcats", data["teamName"])
	assert.Equal(t, false, data["isPlatformAdmin"])
}

func TestMe_WithoutIdentity(t *testing.T) {
	t.Parallel()

	h := handler.NewAuthHandler(&mockSigner{}, &mockLogin{})

	req, w := makeChiRequest(http.MethodGet, "/api/v1/me", nil, "/api/v1/me", nil)
	h.Me(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
