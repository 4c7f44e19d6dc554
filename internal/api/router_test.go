package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/api"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/tier"
)

var routerTeamID = uuid.New()

// --- Fakes. Embedded interfaces are left nil; only the methods a test reaches are implemented. ---

type fakeDB struct{}

func (fakeDB) Ping(_ context.Context) error { return nil }
func (fakeDB) TableCounts(_ context.Context) (map[string]int64, error) {
	return map[string]int64{"teams": 1}, nil
}

type fakeFilm struct {
	api.Film
}

func (fakeFilm) Enabled() bool                { return false }
func (fakeFilm) Ping(_ context.Context) error { return nil }

type fakeTiers struct {
	tier.Repository
}

func (fakeTiers) List(_ context.Context, activeOnly bool) ([]tier.Tier, error) {
	return []tier.Tier{{ID: uuid.New(), Name: "plus", DisplayName: "Plus", Active: activeOnly}}, nil
}

type fakeBilling struct {
	api.Billing
	allowed bool
}

func (f fakeBilling) CheckAccess(_ context.Context, _ uuid.UUID) (*billing.Access, error) {
	if f.allowed {
		return &billing.Access{Allowed: true, Status: billing.StatusActive}, nil
	}
	return &billing.Access{Status: billing.StatusExpired, Reason: "trial ended"}, nil
}

func (fakeBilling) CountByStatus(_ context.Context) (map[string]int, error) {
	return map[string]int{billing.StatusActive: 1}, nil
}

// fakeAuth maps bearer tokens to identities.
type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, token string) (*auth.Identity, error) {
	teamID := routerTeamID
	teamName := "Wildcats"
	switch token {
	case "head", "coach", "viewer":
		role := map[string]string{"head": auth.RoleHeadCoach, "coach": auth.RoleCoach, "viewer": auth.RoleViewer}[token]
		return &auth.Identity{UserID: uuid.New(), Email: token + "@example.com", Name: token, TeamID: &teamID, TeamName: &teamName, Role: &role}, nil
	case "admin":
		return &auth.Identity{UserID: uuid.New(), Email: "admin@example.com", Name: "Admin", IsPlatformAdmin: true}, nil
	}
	return nil, auth.ErrInvalidToken
}

func (fakeAuth) Login(_ context.Context, _, _ string) (*auth.Session, error) {
	return nil, auth.ErrInvalidCredentials
}

func startRouter(t *testing.T, subscribed bool) *httptest.Server {
	t.Helper()

	router := api.NewRouter(api.RouterDeps{
		Version: "0.1.0",
		DB:      fakeDB{},
		Auth:    fakeAuth{},
		Tiers:   fakeTiers{},
		Film:    fakeFilm{},
		Billing: fakeBilling{allowed: subscribed},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, token, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env map[string]interface{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

func errCode(env map[string]interface{}) string {
	if e, ok := env["error"].(map[string]interface{}); ok {
		code, _ := e["code"].(string)
		return code
	}
	return ""
}

func TestRouter_Health(t *testing.T) {
	// Arrange
	srv := startRouter(t, true)

	// Act
	resp, env := do(t, srv, http.MethodGet, "/health", "", "")

	// Assert
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "0.1.0", data["version"])
}

func TestRouter_MetricsExposed(t *testing.T) {
	srv := startRouter(t, true)

	// Hit a route first so the request counter has a sample.
	_, _ = do(t, srv, http.MethodGet, "/health", "", "")

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `huddle_http_requests_total{method="GET",route="/health"`)
}

func TestRouter_PublicTiers(t *testing.T) {
	srv := startRouter(t, true)

	resp, env := do(t, srv, http.MethodGet, "/api/v1/tiers", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	items := env["data"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "plus", items[0].(map[string]interface{})["name"])
}

func TestRouter_Authorization(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"me without token", http.MethodGet, "/api/v1/me", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"me with bad token", http.MethodGet, "/api/v1/me", "expired", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"me as viewer", http.MethodGet, "/api/v1/me", "viewer", "", http.StatusOK, ""},
		{"admin route as head coach", http.MethodGet, "/admin/stats", "head", "", http.StatusForbidden, "FORBIDDEN"},
		{"team route as platform admin", http.MethodGet, "/api/v1/players", "admin", "", http.StatusForbidden, "FORBIDDEN"},
		{"viewer cannot write", http.MethodPost, "/api/v1/players", "viewer", `{}`, http.StatusForbidden, "FORBIDDEN"},
		{"coach cannot manage staff", http.MethodGet, "/api/v1/staff", "coach", "", http.StatusForbidden, "FORBIDDEN"},
		{"coach validation still runs", http.MethodPost, "/api/v1/players", "coach", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"admin stats", http.MethodGet, "/admin/stats", "admin", "", http.StatusOK, ""},
	}

	srv := startRouter(t, true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := do(t, srv, tt.method, tt.path, tt.token, tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errCode(env))
		})
	}
}

func TestRouter_GatedRoutesNeedSubscription(t *testing.T) {
	srv := startRouter(t, false)

	paths := []string{
		"/api/v1/games/" + uuid.NewString() + "/videos",
		"/api/v1/videos/" + uuid.NewString() + "/ai-tag",
		"/api/v1/practice-plans/generate",
		"/api/v1/messages",
	}
	for _, path := range paths {
		resp, env := do(t, srv, http.MethodPost, path, "head", `{}`)

		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode, path)
		assert.Equal(t, "SUBSCRIPTION_INACTIVE", errCode(env), path)
		details := env["error"].(map[string]interface{})["details"].(map[string]interface{})
		assert.Equal(t, "expired", details["status"])
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := startRouter(t, true)

	resp, _ := do(t, srv, http.MethodGet, "/api/v2/anything", "", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
