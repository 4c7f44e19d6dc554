package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/ai"
	"github.com/huddlehq/huddle/internal/aitag"
	"github.com/huddlehq/huddle/internal/api/handler"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/film"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/tier"
)

type mockFilm struct {
	beginUploadFn func(ctx context.Context, teamID, gameID uuid.UUID, limits film.Limits, req film.UploadRequest) (*film.Upload, error)
	completeFn    func(ctx context.Context, teamID, id uuid.UUID, limits film.Limits) (*film.Video, error)
	playbackFn    func(ctx context.Context, v *film.Video) (string, error)
	getFn         func(ctx context.Context, teamID, id uuid.UUID) (*film.Video, error)
	listByGameFn  func(ctx context.Context, teamID, gameID uuid.UUID) ([]film.Video, error)
	updateFn      func(ctx context.Context, teamID, id uuid.UUID, fields film.UpdateFields) (*film.Video, error)
	setOffsetFn   func(ctx context.Context, teamID, id uuid.UUID, offsetMs int64) (*film.Video, error)
	deleteFn      func(ctx context.Context, teamID, id uuid.UUID) error
}

func (m *mockFilm) BeginUpload(ctx context.Context, teamID, gameID uuid.UUID, limits film.Limits, req film.UploadRequest) (*film.Upload, error) {
	return m.beginUploadFn(ctx, teamID, gameID, limits, req)
}

func (m *mockFilm) Complete(ctx context.Context, teamID, id uuid.UUID, limits film.Limits) (*film.Video, error) {
	return m.completeFn(ctx, teamID, id, limits)
}

func (m *mockFilm) PlaybackURL(ctx context.Context, v *film.Video) (string, error) {
	if m.playbackFn == nil {
		return "", nil
	}
	return m.playbackFn(ctx, v)
}

func (m *mockFilm) Get(ctx context.Context, teamID, id uuid.UUID) (*film.Video, error) {
	return m.getFn(ctx, teamID, id)
}

func (m *mockFilm) ListByGame(ctx context.Context, teamID, gameID uuid.UUID) ([]film.Video, error) {
	return m.listByGameFn(ctx, teamID, gameID)
}

func (m *mockFilm) Update(ctx context.Context, teamID, id uuid.UUID, fields film.UpdateFields) (*film.Video, error) {
	return m.updateFn(ctx, teamID, id, fields)
}

func (m *mockFilm) SetOffset(ctx context.Context, teamID, id uuid.UUID, offsetMs int64) (*film.Video, error) {
	return m.setOffsetFn(ctx, teamID, id, offsetMs)
}

func (m *mockFilm) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	return m.deleteFn(ctx, teamID, id)
}

func uploadedVideo(gameID uuid.UUID, lane int, offsetMs, durationMs int64) film.Video {
	now := time.Now().UTC()
	return film.Video{
		ID: uuid.New(), TeamID: testTeamID, GameID: gameID, Title: "Sideline",
		CameraLane: lane, ContentType: "video/mp4", SizeBytes: 1 << 20,
		DurationMs: durationMs, SyncOffsetMs: offsetMs, Status: film.StatusUploaded,
		CreatedAt: now, UpdatedAt: now,
	}
}

func plusTier() *tier.Tier {
	return &tier.Tier{Name: "plus", MaxVideosPerGame: 4, MaxUploadBytes: 2 << 30, MonthlyTokens: 100}
}

func videoBody(t *testing.T) []byte {
	return mustJSON(t, map[string]interface{}{
		"title": "Endzone", "fileName": "endzone.mp4", "contentType": "video/mp4",
		"sizeBytes": 1048576, "cameraLane": 1, "cameraLabel": "Endzone",
	})
}

// ===== POST /api/v1/games/{gameID}/videos =====

func TestVideoCreate_PassesTierLimits(t *testing.T) {
	t.Parallel()

	gameID := uuid.New()
	svc := &mockFilm{
		beginUploadFn: func(_ context.Context, teamID, gid uuid.UUID, limits film.Limits, req film.UploadRequest) (*film.Upload, error) {
			assert.Equal(t, testTeamID, teamID)
			assert.Equal(t, gameID, gid)
			assert.Equal(t, 4, limits.MaxVideosPerGame)
			assert.Equal(t, int64(2<<30), limits.MaxUploadBytes)
			assert.Equal(t, "Endzone", req.Title)
			require.NotNil(t, req.CreatedBy)
			v := uploadedVideo(gid, req.CameraLane, 0, 0)
			v.Status = film.StatusPending
			return &film.Upload{Video: &v, UploadURL: "https://storage.example.com/put", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	h := handler.NewVideoHandler(svc, gameFound(), &mockTierLookup{tier: plusTier()})

	req, w := makeChiRequest(http.MethodPost, "/api/v1/games/"+gameID.String()+"/videos", videoBody(t),
		"/api/v1/games/{gameID}/videos", map[string]string{"gameID": gameID.String()})
	h.Create(w, asCoach(req))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "https://storage.example.com/put", data["uploadUrl"])
	assert.Equal(t, "pending", data["video"].(map[string]interface{})["status"])
}

func TestVideoCreate_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"limit reached", film.ErrVideoLimitReached, http.StatusConflict, "LIMIT_REACHED"},
		{"too large", film.ErrFileTooLarge, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"storage off", film.ErrStorageDisabled, http.StatusServiceUnavailable, "FEATURE_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockFilm{
				beginUploadFn: func(_ context.Context, _, _ uuid.UUID, _ film.Limits, _ film.UploadRequest) (*film.Upload, error) {
					return nil, tt.err
				},
			}
			h := handler.NewVideoHandler(svc, gameFound(), &mockTierLookup{tier: plusTier()})

			gameID := uuid.New().String()
			req, w := makeChiRequest(http.MethodPost, "/api/v1/games/"+gameID+"/videos", videoBody(t),
				"/api/v1/games/{gameID}/videos", map[string]string{"gameID": gameID})
			h.Create(w, asCoach(req))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestVideoCreate_RejectsNonVideo(t *testing.T) {
	t.Parallel()

	h := handler.NewVideoHandler(&mockFilm{}, gameFound(), &mockTierLookup{tier: plusTier()})

	gameID := uuid.New().String()
	body := mustJSON(t, map[string]interface{}{"title": "Notes", "contentType": "application/pdf", "sizeBytes": 10})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/games/"+gameID+"/videos", body,
		"/api/v1/games/{gameID}/videos", map[string]string{"gameID": gameID})
	h.Create(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestVideoCreate_GameMissing(t *testing.T) {
	t.Parallel()

	games := &mockGameLookup{getByIDFn: func(_ context.Context, _, _ uuid.UUID) (*game.Game, error) {
		return nil, game.ErrGameNotFound
	}}
	h := handler.NewVideoHandler(&mockFilm{}, games, &mockTierLookup{tier: plusTier()})

	gameID := uuid.New().String()
	req, w := makeChiRequest(http.MethodPost, "/api/v1/games/"+gameID+"/videos", videoBody(t),
		"/api/v1/games/{gameID}/videos", map[string]string{"gameID": gameID})
	h.Create(w, asCoach(req))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ===== GET /api/v1/videos/{id} =====

func TestVideoGet_IncludesPlaybackURL(t *testing.T) {
	t.Parallel()

	v := uploadedVideo(uuid.New(), 0, 0, 60000)
	svc := &mockFilm{
		getFn: func(_ context.Context, _, _ uuid.UUID) (*film.Video, error) { return &v, nil },
		playbackFn: func(_ context.Context, _ *film.Video) (string, error) {
			return "https://storage.example.com/get", nil
		},
	}
	h := handler.NewVideoHandler(svc, gameFound(), &mockTierLookup{})

	req, w := makeChiRequest(http.MethodGet, "/api/v1/videos/"+v.ID.String(), nil, "/api/v1/videos/{id}", map[string]string{"id": v.ID.String()})
	h.GetByID(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "https://storage.example.com/get", data["playbackUrl"])
}

func TestVideoComplete_NotUploaded(t *testing.T) {
	t.Parallel()

	svc := &mockFilm{
		completeFn: func(_ context.Context, _, _ uuid.UUID, _ film.Limits) (*film.Video, error) { return nil, film.ErrUploadMissing },
	}
	h := handler.NewVideoHandler(svc, gameFound(), &mockTierLookup{tier: plusTier()})

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodPost, "/api/v1/videos/"+id+"/complete", nil, "/api/v1/videos/{id}/complete", map[string]string{"id": id})
	h.Complete(w, asCoach(req))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))
}

func TestVideoComplete_OversizedObject(t *testing.T) {
	t.Parallel()

	var got film.Limits
	svc := &mockFilm{
		completeFn: func(_ context.Context, _, _ uuid.UUID, limits film.Limits) (*film.Video, error) {
			got = limits
			return nil, film.ErrFileTooLarge
		},
	}
	h := handler.NewVideoHandler(svc, gameFound(), &mockTierLookup{tier: plusTier()})

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodPost, "/api/v1/videos/"+id+"/complete", nil, "/api/v1/videos/{id}/complete", map[string]string{"id": id})
	h.Complete(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	assert.Equal(t, plusTier().MaxUploadBytes, got.MaxUploadBytes)
}

// ===== GET /api/v1/games/{gameID}/timeline =====

func TestTimelineGet(t *testing.T) {
	t.Parallel()

	gameID := uuid.New()
	wide := uploadedVideo(gameID, 0, 0, 10000)
	endzone := uploadedVideo(gameID, 1, 4000, 3000)
	pending := uploadedVideo(gameID, 2, 0, 5000)
	pending.Status = film.StatusPending
	svc := &mockFilm{
		listByGameFn: func(_ context.Context, _, _ uuid.UUID) ([]film.Video, error) {
			return []film.Video{wide, endzone, pending}, nil
		},
	}
	h := handler.NewTimelineHandler(svc, gameFound())

	req, w := makeChiRequest(http.MethodGet, "/api/v1/games/"+gameID.String()+"/timeline?t=2000", nil,
		"/api/v1/games/{gameID}/timeline", map[string]string{"gameID": gameID.String()})
	h.Get(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2000), data["atMs"])
	assert.Equal(t, []interface{}{float64(0), float64(1)}, data["lanes"])
	assert.Equal(t, map[string]interface{}{"startMs": float64(0), "endMs": float64(10000)}, data["extent"])

	snapshot := data["snapshot"].([]interface{})
	require.Len(t, snapshot, 2)
	lane0 := snapshot[0].(map[string]interface{})
	assert.Equal(t, float64(2000), lane0["videoTimeMs"])
	lane1 := snapshot[1].(map[string]interface{})
	assert.Nil(t, lane1["active"])
	assert.Equal(t, float64(2000), lane1["resumesInMs"])

	gaps := data["gaps"].([]interface{})
	require.Len(t, gaps, 2)
	lane1Gaps := gaps[1].(map[string]interface{})["gaps"].([]interface{})
	assert.Len(t, lane1Gaps, 2)
}

func TestTimelineGet_NoFilm(t *testing.T) {
	t.Parallel()

	svc := &mockFilm{
		listByGameFn: func(_ context.Context, _, _ uuid.UUID) ([]film.Video, error) { return nil, nil },
	}
	h := handler.NewTimelineHandler(svc, gameFound())

	gameID := uuid.New().String()
	req, w := makeChiRequest(http.MethodGet, "/api/v1/games/"+gameID+"/timeline", nil,
		"/api/v1/games/{gameID}/timeline", map[string]string{"gameID": gameID})
	h.Get(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Nil(t, data["extent"])
	assert.Equal(t, []interface{}{}, data["lanes"])
	assert.Equal(t, []interface{}{}, data["clips"])
}

// ===== POST /api/v1/games/{gameID}/timeline/sync =====

func TestTimelineSync_SetsOffset(t *testing.T) {
	t.Parallel()

	gameID := uuid.New()
	ref := uploadedVideo(gameID, 0, 1000, 60000)
	other := uploadedVideo(gameID, 1, 0, 60000)
	videos := map[uuid.UUID]film.Video{ref.ID: ref, other.ID: other}

	svc := &mockFilm{
		getFn: func(_ context.Context, _, id uuid.UUID) (*film.Video, error) {
			v := videos[id]
			return &v, nil
		},
		setOffsetFn: func(_ context.Context, _, id uuid.UUID, offsetMs int64) (*film.Video, error) {
			assert.Equal(t, other.ID, id)
			// ref shows its 5s mark at game time 6s; other's 2s mark must land there.
			assert.Equal(t, int64(4000), offsetMs)
			v := other
			v.SyncOffsetMs = offsetMs
			return &v, nil
		},
	}
	h := handler.NewTimelineHandler(svc, gameFound())

	body := mustJSON(t, map[string]interface{}{
		"referenceVideoId": ref.ID.String(), "referenceMs": 5000,
		"videoId": other.ID.String(), "videoMs": 2000,
	})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/games/"+gameID.String()+"/timeline/sync", body,
		"/api/v1/games/{gameID}/timeline/sync", map[string]string{"gameID": gameID.String()})
	h.Sync(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(4000), data["syncOffsetMs"])
}

func TestTimelineSync_VideoFromOtherGame(t *testing.T) {
	t.Parallel()

	gameID := uuid.New()
	ref := uploadedVideo(gameID, 0, 0, 60000)
	stray := uploadedVideo(uuid.New(), 1, 0, 60000)
	videos := map[uuid.UUID]film.Video{ref.ID: ref, stray.ID: stray}

	svc := &mockFilm{
		getFn: func(_ context.Context, _, id uuid.UUID) (*film.Video, error) {
			v := videos[id]
			return &v, nil
		},
	}
	h := handler.NewTimelineHandler(svc, gameFound())

	body := mustJSON(t, map[string]interface{}{
		"referenceVideoId": ref.ID.String(), "referenceMs": 0,
		"videoId": stray.ID.String(), "videoMs": 0,
	})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/games/"+gameID.String()+"/timeline/sync", body,
		"/api/v1/games/{gameID}/timeline/sync", map[string]string{"gameID": gameID.String()})
	h.Sync(w, asCoach(req))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ===== POST /api/v1/videos/{id}/ai-tag =====

type mockTagger struct {
	tagFn func(ctx context.Context, tierName string, in aitag.Input) (*aitag.Result, error)
}

func (m *mockTagger) Tag(ctx context.Context, tierName string, in aitag.Input) (*aitag.Result, error) {
	return m.tagFn(ctx, tierName, in)
}

type mockRefs struct{}

func (mockRefs) Refs(_ context.Context, _ uuid.UUID) ([]playbook.Ref, error) {
	return []playbook.Ref{{ID: uuid.New(), Name: "Power Right"}}, nil
}

func aiTier() *tier.Tier {
	t := plusTier()
	t.AITagging = true
	return t
}

func TestAITag_Success(t *testing.T) {
	t.Parallel()

	v := uploadedVideo(uuid.New(), 0, 0, 60000)
	svc := &mockFilm{
		getFn: func(_ context.Context, _, _ uuid.UUID) (*film.Video, error) { return &v, nil },
		playbackFn: func(_ context.Context, _ *film.Video) (string, error) {
			return "https://storage.example.com/get", nil
		},
	}
	tagger := &mockTagger{
		tagFn: func(_ context.Context, tierName string, in aitag.Input) (*aitag.Result, error) {
			assert.Equal(t, "standard", tierName)
			assert.Equal(t, "https://storage.example.com/get", in.MediaURI)
			require.Len(t, in.Playbook, 1)
			require.NotNil(t, in.StartMs)
			return &aitag.Result{
				Created: []playtag.PlayInstance{{
					ID: uuid.New(), TeamID: testTeamID, GameID: v.GameID, VideoID: &v.ID,
					StartMs: 1000, EndMs: 7000, Side: "offense", PlayType: "run",
					Source: playtag.SourceAI, TaggingTier: tierName,
				}},
				Discarded: 1, TokensUsed: 3, Balance: 97,
			}, nil
		},
	}
	h := handler.NewTaggingHandler(tagger, svc, mockRefs{}, &mockTierLookup{tier: aiTier()})

	body := mustJSON(t, map[string]interface{}{"tier": "standard", "startMs": 0, "endMs": 30000})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/videos/"+v.ID.String()+"/ai-tag", body,
		"/api/v1/videos/{id}/ai-tag", map[string]string{"id": v.ID.String()})
	h.AITag(w, asCoach(req))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["createdCount"])
	assert.Equal(t, float64(1), data["discarded"])
	assert.Equal(t, float64(97), data["balance"])
}

func TestAITag_PlanWithoutAI(t *testing.T) {
	t.Parallel()

	h := handler.NewTaggingHandler(&mockTagger{}, &mockFilm{}, mockRefs{}, &mockTierLookup{tier: plusTier()})

	id := uuid.New().String()
	body := mustJSON(t, map[string]interface{}{"tier": "quick"})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/videos/"+id+"/ai-tag", body,
		"/api/v1/videos/{id}/ai-tag", map[string]string{"id": id})
	h.AITag(w, asCoach(req))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))
}

func TestAITag_BadWindow(t *testing.T) {
	t.Parallel()

	h := handler.NewTaggingHandler(&mockTagger{}, &mockFilm{}, mockRefs{}, &mockTierLookup{tier: aiTier()})

	id := uuid.New().String()
	body := mustJSON(t, map[string]interface{}{"tier": "quick", "startMs": 5000, "endMs": 5000})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/videos/"+id+"/ai-tag", body,
		"/api/v1/videos/{id}/ai-tag", map[string]string{"id": id})
	h.AITag(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestAITag_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no model", ai.ErrUnavailable, http.StatusServiceUnavailable, "FEATURE_UNAVAILABLE"},
		{"out of tokens", billing.ErrInsufficientTokens, http.StatusPaymentRequired, "INSUFFICIENT_TOKENS"},
		{"unusable answer", aitag.ErrTaggingFailed, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"pending upload", aitag.ErrVideoNotReady, http.StatusConflict, "CONFLICT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := uploadedVideo(uuid.New(), 0, 0, 60000)
			svc := &mockFilm{
				getFn: func(_ context.Context, _, _ uuid.UUID) (*film.Video, error) { return &v, nil },
			}
			tagger := &mockTagger{
				tagFn: func(_ context.Context, _ string, _ aitag.Input) (*aitag.Result, error) { return nil, tt.err },
			}
			h := handler.NewTaggingHandler(tagger, svc, mockRefs{}, &mockTierLookup{tier: aiTier()})

			body := mustJSON(t, map[string]interface{}{"tier": "comprehensive"})
			req, w := makeChiRequest(http.MethodPost, "/api/v1/videos/"+v.ID.String()+"/ai-tag", body,
				"/api/v1/videos/{id}/ai-tag", map[string]string{"id": v.ID.String()})
			h.AITag(w, asCoach(req))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestTaggingTiers(t *testing.T) {
	t.Parallel()

	h := handler.NewTaggingHandler(&mockTagger{}, &mockFilm{}, mockRefs{}, &mockTierLookup{})

	req, w := makeChiRequest(http.MethodGet, "/api/v1/tagging-tiers", nil, "/api/v1/tagging-tiers", nil)
	h.Tiers(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, parseEnvelope(t, w)["data"].([]interface{}), 3)
}
