package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/api/handler"
	"github.com/huddlehq/huddle/internal/player"
)

func samplePlayer(id uuid.UUID, jersey int, positions ...string) player.Player {
	now := time.Now().UTC()
	return player.Player{
		ID:           id,
		TeamID:       testTeamID,
		FirstName:    "Sam",
		LastName:     "Runner",
		JerseyNumber: jersey,
		Positions:    positions,
		Status:       player.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ===== POST /players =====

func TestPlayerCreate_Success(t *testing.T) {
	t.Parallel()

	var stored *player.Player
	repo := &mockPlayerRepo{
		createFn: func(_ context.Context, p *player.Player) error {
			p.ID = uuid.New()
			p.CreatedAt = time.Now().UTC()
			p.UpdatedAt = p.CreatedAt
			stored = p
			return nil
		},
	}
	h := handler.NewPlayerHandler(repo)

	body := mustJSON(t, map[string]interface{}{
		"firstName":    "  Sam ",
		"lastName":     "Runner",
		"jerseyNumber": 0,
		"positions":    []string{"RB", "KR"},
	})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/players", body, "/api/v1/players", nil)
	h.Create(w, asCoach(req))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, stored)
	assert.Equal(t, testTeamID, stored.TeamID)
	assert.Equal(t, "Sam", stored.FirstName)
	assert.Equal(t, player.StatusActive, stored.Status)

	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["jerseyNumber"])
	assert.Equal(t, []interface{}{"RB", "KR"}, data["positions"])
}

func TestPlayerCreate_ValidationError(t *testing.T) {
	t.Parallel()

	h := handler.NewPlayerHandler(&mockPlayerRepo{})

	body := mustJSON(t, map[string]interface{}{
		"firstName": "",
		"lastName":  "Runner",
		"positions": []string{"QB", "GOALIE"},
	})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/players", body, "/api/v1/players", nil)
	h.Create(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	errObj := env["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])

	fields := map[string]bool{}
	for _, d := range errObj["details"].([]interface{}) {
		fields[d.(map[string]interface{})["field"].(string)] = true
	}
	assert.True(t, fields["firstName"])
	assert.True(t, fields["jerseyNumber"])
	assert.True(t, fields["positions[1]"])
}

func TestPlayerCreate_DuplicateJersey(t *testing.T) {
	t.Parallel()

	repo := &mockPlayerRepo{
		createFn: func(_ context.Context, _ *player.Player) error { return player.ErrDuplicateJersey },
	}
	h := handler.NewPlayerHandler(repo)

	body := mustJSON(t, map[string]interface{}{"firstName": "A", "lastName": "B", "jerseyNumber": 7})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/players", body, "/api/v1/players", nil)
	h.Create(w, asCoach(req))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_JERSEY", errorCode(t, w))
}

func TestPlayerCreate_InvalidJSON(t *testing.T) {
	t.Parallel()

	h := handler.NewPlayerHandler(&mockPlayerRepo{})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/players", []byte("{"), "/api/v1/players", nil)
	h.Create(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", errorCode(t, w))
}

// ===== GET /players =====

func TestPlayerList_PassesFilters(t *testing.T) {
	t.Parallel()

	var got player.ListFilter
	repo := &mockPlayerRepo{
		listFn: func(_ context.Context, teamID uuid.UUID, filter player.ListFilter) (*player.ListResult, error) {
			assert.Equal(t, testTeamID, teamID)
			got = filter
			return &player.ListResult{
				Players: []player.Player{samplePlayer(uuid.New(), 12, "QB")},
				Total:   1, Page: filter.Page, Limit: filter.Limit,
			}, nil
		},
	}
	h := handler.NewPlayerHandler(repo)

	req, w := makeChiRequest(http.MethodGet, "/api/v1/players?position=QB&page=2&limit=5", nil, "/api/v1/players", nil)
	h.List(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got.Position)
	assert.Equal(t, "QB", *got.Position)
	assert.Nil(t, got.Status)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 5, got.Limit)

	env := parseEnvelope(t, w)
	assert.Len(t, env["data"].([]interface{}), 1)
	meta := env["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["total"])
}

func TestPlayerList_InvalidPage(t *testing.T) {
	t.Parallel()

	h := handler.NewPlayerHandler(&mockPlayerRepo{})
	req, w := makeChiRequest(http.MethodGet, "/api/v1/players?page=0", nil, "/api/v1/players", nil)
	h.List(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_QUERY", errorCode(t, w))
}

// ===== GET /players/{id} =====

func TestPlayerGetByID_NotFound(t *testing.T) {
	t.Parallel()

	repo := &mockPlayerRepo{
		getByIDFn: func(_ context.Context, _, _ uuid.UUID) (*player.Player, error) {
			return nil, player.ErrPlayerNotFound
		},
	}
	h := handler.NewPlayerHandler(repo)

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodGet, "/api/v1/players/"+id, nil, "/api/v1/players/{id}", map[string]string{"id": id})
	h.GetByID(w, asCoach(req))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestPlayerGetByID_InvalidID(t *testing.T) {
	t.Parallel()

	h := handler.NewPlayerHandler(&mockPlayerRepo{})
	req, w := makeChiRequest(http.MethodGet, "/api/v1/players/abc", nil, "/api/v1/players/{id}", map[string]string{"id": "abc"})
	h.GetByID(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

// ===== PATCH /players/{id} =====

func TestPlayerUpdate_PartialFields(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	repo := &mockPlayerRepo{
		updateFn: func(_ context.Context, _, gotID uuid.UUID, fields player.UpdateFields) (*player.Player, error) {
			assert.Equal(t, id, gotID)
			assert.Nil(t, fields.FirstName)
			require.NotNil(t, fields.Status)
			assert.Equal(t, player.StatusInjured, *fields.Status)
			p := samplePlayer(id, 4, "WR")
			p.Status = *fields.Status
			return &p, nil
		},
	}
	h := handler.NewPlayerHandler(repo)

	body := mustJSON(t, map[string]interface{}{"status": "injured"})
	req, w := makeChiRequest(http.MethodPatch, "/api/v1/players/"+id.String(), body, "/api/v1/players/{id}", map[string]string{"id": id.String()})
	h.Update(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "injured", data["status"])
}

// ===== DELETE /players/{id} =====

func TestPlayerDelete_Success(t *testing.T) {
	t.Parallel()

	repo := &mockPlayerRepo{
		deleteFn: func(_ context.Context, _, _ uuid.UUID) error { return nil },
	}
	h := handler.NewPlayerHandler(repo)

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodDelete, "/api/v1/players/"+id, nil, "/api/v1/players/{id}", map[string]string{"id": id})
	h.Delete(w, asCoach(req))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

// ===== GET /depth-chart =====

func TestPlayerDepthChart_GroupsByPrimaryPosition(t *testing.T) {
	t.Parallel()

	injured := samplePlayer(uuid.New(), 1, "QB")
	injured.Status = player.StatusInjured
	repo := &mockPlayerRepo{
		listActiveFn: func(_ context.Context, _ uuid.UUID) ([]player.Player, error) {
			return []player.Player{
				samplePlayer(uuid.New(), 22, "RB"),
				samplePlayer(uuid.New(), 10, "QB"),
				samplePlayer(uuid.New(), 5, "RB", "KR"),
				injured,
			}, nil
		},
	}
	h := handler.NewPlayerHandler(repo)

	req, w := makeChiRequest(http.MethodGet, "/api/v1/depth-chart", nil, "/api/v1/depth-chart", nil)
	h.DepthChart(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	groups := parseEnvelope(t, w)["data"].([]interface{})
	require.Len(t, groups, 2)

	qb := groups[0].(map[string]interface{})
	assert.Equal(t, "QB", qb["position"])
	assert.Len(t, qb["players"].([]interface{}), 1)

	rb := groups[1].(map[string]interface{})
	assert.Equal(t, "RB", rb["position"])
	rbs := rb["players"].([]interface{})
	require.Len(t, rbs, 2)
	assert.Equal(t, float64(5), rbs[0].(map[string]interface{})["jerseyNumber"])
}
