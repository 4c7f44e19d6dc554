package handler_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/api/handler"
	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/tier"
)

// --- Helpers ---

type spyRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *spyRecorder) Record(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func sampleTier(name string, active bool) tier.Tier {
	now := time.Now().UTC()
	return tier.Tier{
		ID:               uuid.New(),
		Name:             name,
		DisplayName:      "Plus",
		PriceCents:       2900,
		MonthlyTokens:    100,
		MaxStaff:         5,
		MaxVideosPerGame: 4,
		MaxUploadBytes:   4 << 30,
		StripePriceID:    "price_123",
		AITagging:        true,
		Active:           active,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ===== GET /api/v1/tiers =====

func TestTierPublic_ActiveOnlyWithoutProcessorIDs(t *testing.T) {
	t.Parallel()

	repo := &mockTierRepo{
		listFn: func(_ context.Context, activeOnly bool) ([]tier.Tier, error) {
			assert.True(t, activeOnly)
			free := sampleTier("basic", true)
			free.StripePriceID = ""
			return []tier.Tier{free, sampleTier("plus", true)}, nil
		},
	}
	h := handler.NewTierHandler(repo, nil)

	req, w := makeChiRequest(http.MethodGet, "/api/v1/tiers", nil, "/api/v1/tiers", nil)
	h.Public(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	items := parseEnvelope(t, w)["data"].([]interface{})
	require.Len(t, items, 2)

	basic := items[0].(map[string]interface{})
	assert.Equal(t, "basic", basic["name"])
	assert.Equal(t, false, basic["purchasable"])
	assert.NotContains(t, basic, "stripePriceId")
	assert.NotContains(t, basic, "id")
	assert.Equal(t, true, items[1].(map[string]interface{})["purchasable"])
}

// ===== POST /admin/tiers =====

func TestTierCreate_Success(t *testing.T) {
	t.Parallel()

	recorder := &spyRecorder{}
	repo := &mockTierRepo{
		createFn: func(_ context.Context, t *tier.Tier) error {
			t.ID = uuid.New()
			t.CreatedAt = time.Now().UTC()
			t.UpdatedAt = t.CreatedAt
			return nil
		},
	}
	h := handler.NewTierHandler(repo, recorder)

	body := mustJSON(t, map[string]interface{}{
		"name":             "premium",
		"displayName":      "Premium",
		"priceCents":       4900,
		"monthlyTokens":    300,
		"maxStaff":         0,
		"maxVideosPerGame": 8,
		"aiTagging":        true,
	})
	req, w := makeChiRequest(http.MethodPost, "/admin/tiers", body, "/admin/tiers", nil)
	h.Create(w, asAdmin(req))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "premium", data["name"])
	assert.Equal(t, true, data["active"])
	assert.NotEmpty(t, data["id"])

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionTierCreate, recorder.entries[0].Action)
	require.NotNil(t, recorder.entries[0].ActorID)
	assert.Equal(t, testUserID, *recorder.entries[0].ActorID)
}

func TestTierCreate_ValidationError(t *testing.T) {
	t.Parallel()

	h := handler.NewTierHandler(&mockTierRepo{}, nil)

	body := mustJSON(t, map[string]interface{}{
		"name":          "Has Spaces",
		"displayName":   " ",
		"monthlyTokens": -1,
	})
	req, w := makeChiRequest(http.MethodPost, "/admin/tiers", body, "/admin/tiers", nil)
	h.Create(w, asAdmin(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	errObj := env["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	assert.Len(t, errObj["details"], 3)
}

func TestTierCreate_DuplicateName(t *testing.T) {
	t.Parallel()

	repo := &mockTierRepo{
		createFn: func(_ context.Context, _ *tier.Tier) error { return tier.ErrDuplicateTierName },
	}
	h := handler.NewTierHandler(repo, nil)

	body := mustJSON(t, map[string]interface{}{"name": "plus", "displayName": "Plus"})
	req, w := makeChiRequest(http.MethodPost, "/admin/tiers", body, "/admin/tiers", nil)
	h.Create(w, asAdmin(req))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_NAME", errorCode(t, w))
}

// ===== PATCH /admin/tiers/{id} =====

func TestTierUpdate_NotFound(t *testing.T) {
	t.Parallel()

	repo := &mockTierRepo{
		updateFn: func(_ context.Context, _ uuid.UUID, _ tier.UpdateFields) (*tier.Tier, error) {
			return nil, tier.ErrTierNotFound
		},
	}
	h := handler.NewTierHandler(repo, nil)

	id := uuid.New().String()
	body := mustJSON(t, map[string]interface{}{"monthlyTokens": 50})
	req, w := makeChiRequest(http.MethodPatch, "/admin/tiers/"+id, body, "/admin/tiers/{id}", map[string]string{"id": id})
	h.Update(w, asAdmin(req))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestTierUpdate_Success(t *testing.T) {
	t.Parallel()

	recorder := &spyRecorder{}
	repo := &mockTierRepo{
		updateFn: func(_ context.Context, id uuid.UUID, fields tier.UpdateFields) (*tier.Tier, error) {
			require.NotNil(t, fields.Active)
			assert.False(t, *fields.Active)
			assert.Nil(t, fields.PriceCents)
			updated := sampleTier("plus", false)
			updated.ID = id
			return &updated, nil
		},
	}
	h := handler.NewTierHandler(repo, recorder)

	id := uuid.New().String()
	body := mustJSON(t, map[string]interface{}{"active": false})
	req, w := makeChiRequest(http.MethodPatch, "/admin/tiers/"+id, body, "/admin/tiers/{id}", map[string]string{"id": id})
	h.Update(w, asAdmin(req))

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, id, data["id"])
	assert.Equal(t, false, data["active"])
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionTierUpdate, recorder.entries[0].Action)
}

// ===== DELETE /admin/tiers/{id} =====

func TestTierDelete_InUse(t *testing.T) {
	t.Parallel()

	recorder := &spyRecorder{}
	repo := &mockTierRepo{
		deleteFn: func(_ context.Context, _ uuid.UUID) error { return tier.ErrTierHasSubscriptions },
	}
	h := handler.NewTierHandler(repo, recorder)

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodDelete, "/admin/tiers/"+id, nil, "/admin/tiers/{id}", map[string]string{"id": id})
	h.Delete(w, asAdmin(req))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))
	assert.Empty(t, recorder.entries)
}

func TestTierDelete_Success(t *testing.T) {
	t.Parallel()

	recorder := &spyRecorder{}
	repo := &mockTierRepo{
		deleteFn: func(_ context.Context, _ uuid.UUID) error { return nil },
	}
	h := handler.NewTierHandler(repo, recorder)

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodDelete, "/admin/tiers/"+id, nil, "/admin/tiers/{id}", map[string]string{"id": id})
	h.Delete(w, asAdmin(req))

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, id, recorder.entries[0].TargetID)
}
