package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/player"
	"github.com/huddlehq/huddle/internal/tier"
)

var (
	testTeamID = uuid.New()
	testUserID = uuid.New()
)

func makeChiRequest(method, path string, body []byte, routePattern string, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{routePattern}
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	return req, w
}

// asCoach attaches a head coach identity for the shared test team.
func asCoach(req *http.Request) *http.Request {
	role := auth.RoleHeadCoach
	teamName := "Wildcats"
	teamID := testTeamID
	identity := &auth.Identity{
		UserID:   testUserID,
		Email:    "coach@example.com",
		Name:     "Pat Coach",
		TeamID:   &teamID,
		TeamName: &teamName,
		Role:     &role,
	}
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

// asAdmin attaches a platform admin identity.
func asAdmin(req *http.Request) *http.Request {
	identity := &auth.Identity{UserID: testUserID, Email: "admin@example.com", Name: "Admin", IsPlatformAdmin: true}
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := parseEnvelope(t, w)
	errObj, ok := env["error"].(map[string]interface{})
	require.True(t, ok, "expected an error envelope, got %s", w.Body.String())
	return errObj["code"].(string)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// --- player.Repository ---

type mockPlayerRepo struct {
	createFn     func(ctx context.Context, p *player.Player) error
	getByIDFn    func(ctx context.Context, teamID, id uuid.UUID) (*player.Player, error)
	listFn       func(ctx context.Context, teamID uuid.UUID, filter player.ListFilter) (*player.ListResult, error)
	listActiveFn func(ctx context.Context, teamID uuid.UUID) ([]player.Player, error)
	updateFn     func(ctx context.Context, teamID, id uuid.UUID, fields player.UpdateFields) (*player.Player, error)
	deleteFn     func(ctx context.Context, teamID, id uuid.UUID) error
}

func (m *mockPlayerRepo) Create(ctx context.Context, p *player.Player) error {
	return m.createFn(ctx, p)
}

func (m *mockPlayerRepo) GetByID(ctx context.Context, teamID, id uuid.UUID) (*player.Player, error) {
	return m.getByIDFn(ctx, teamID, id)
}

func (m *mockPlayerRepo) List(ctx context.Context, teamID uuid.UUID, filter player.ListFilter) (*player.ListResult, error) {
	return m.listFn(ctx, teamID, filter)
}

func (m *mockPlayerRepo) ListActive(ctx context.Context, teamID uuid.UUID) ([]player.Player, error) {
	return m.listActiveFn(ctx, teamID)
}

func (m *mockPlayerRepo) Update(ctx context.Context, teamID, id uuid.UUID, fields player.UpdateFields) (*player.Player, error) {
	return m.updateFn(ctx, teamID, id, fields)
}

func (m *mockPlayerRepo) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	return m.deleteFn(ctx, teamID, id)
}

// --- tier.Repository ---

type mockTierRepo struct {
	createFn     func(ctx context.Context, t *tier.Tier) error
	getByIDFn    func(ctx context.Context, id uuid.UUID) (*tier.Tier, error)
	getByNameFn  func(ctx context.Context, name string) (*tier.Tier, error)
	getByPriceFn func(ctx context.Context, priceID string) (*tier.Tier, error)
	listFn       func(ctx context.Context, activeOnly bool) ([]tier.Tier, error)
	updateFn     func(ctx context.Context, id uuid.UUID, fields tier.UpdateFields) (*tier.Tier, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTierRepo) Create(ctx context.Context, t *tier.Tier) error {
	return m.createFn(ctx, t)
}

func (m *mockTierRepo) GetByID(ctx context.Context, id uuid.UUID) (*tier.Tier, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockTierRepo) GetByName(ctx context.Context, name string) (*tier.Tier, error) {
	return m.getByNameFn(ctx, name)
}

func (m *mockTierRepo) GetByStripePriceID(ctx context.Context, priceID string) (*tier.Tier, error) {
	return m.getByPriceFn(ctx, priceID)
}

func (m *mockTierRepo) List(ctx context.Context, activeOnly bool) ([]tier.Tier, error) {
	return m.listFn(ctx, activeOnly)
}

func (m *mockTierRepo) Update(ctx context.Context, id uuid.UUID, fields tier.UpdateFields) (*tier.Tier, error) {
	return m.updateFn(ctx, id, fields)
}

func (m *mockTierRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

// --- lookups ---

type mockGameLookup struct {
	getByIDFn func(ctx context.Context, teamID, id uuid.UUID) (*game.Game, error)
}

func (m *mockGameLookup) GetByID(ctx context.Context, teamID, id uuid.UUID) (*game.Game, error) {
	return m.getByIDFn(ctx, teamID, id)
}

// gameFound returns a lookup that resolves any id to a game on the test team.
func gameFound() *mockGameLookup {
	return &mockGameLookup{getByIDFn: func(_ context.Context, teamID, id uuid.UUID) (*game.Game, error) {
		return &game.Game{ID: id, TeamID: teamID, Opponent: "Eagles"}, nil
	}}
}

type mockTierLookup struct {
	tier *tier.Tier
	err  error
}

func (m *mockTierLookup) Tier(_ context.Context, _ uuid.UUID) (*tier.Tier, error) {
	return m.tier, m.err
}
