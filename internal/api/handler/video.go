package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/film"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/tier"
)

// FilmService is the film upload flow used by the video endpoints.
type FilmService interface {
	BeginUpload(ctx context.Context, teamID, gameID uuid.UUID, limits film.Limits, req film.UploadRequest) (*film.Upload, error)
	Complete(ctx context.Context, teamID, id uuid.UUID, limits film.Limits) (*film.Video, error)
	PlaybackURL(ctx context.Context, v *film.Video) (string, error)
	Get(ctx context.Context, teamID, id uuid.UUID) (*film.Video, error)
	ListByGame(ctx context.Context, teamID, gameID uuid.UUID) ([]film.Video, error)
	Update(ctx context.Context, teamID, id uuid.UUID, fields film.UpdateFields) (*film.Video, error)
	SetOffset(ctx context.Context, teamID, id uuid.UUID, offsetMs int64) (*film.Video, error)
	Delete(ctx context.Context, teamID, id uuid.UUID) error
}

// GameLookup loads a team's game.
type GameLookup interface {
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*game.Game, error)
}

// TierLookup resolves the tier a team is subscribed to.
type TierLookup interface {
	Tier(ctx context.Context, teamID uuid.UUID) (*tier.Tier, error)
}

type createVideoRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	FileName    string `json:"fileName" validate:"max=255"`
	ContentType string `json:"contentType" validate:"required,startswith=video/"`
	SizeBytes   int64  `json:"sizeBytes" validate:"gt=0"`
	CameraLane  int    `json:"cameraLane" validate:"gte=0,lte=16"`
	CameraLabel string `json:"cameraLabel" validate:"max=60"`
}

type updateVideoRequest struct {
	Title        *string `json:"title" validate:"omitempty,notblank,max=200"`
	CameraLane   *int    `json:"cameraLane" validate:"omitempty,gte=0,lte=16"`
	CameraLabel  *string `json:"cameraLabel" validate:"omitempty,max=60"`
	DurationMs   *int64  `json:"durationMs" validate:"omitempty,gte=0"`
	SyncOffsetMs *int64  `json:"syncOffsetMs"`
}

type videoResponse struct {
	ID           string  `json:"id"`
	GameID       string  `json:"gameId"`
	Title        string  `json:"title"`
	CameraLane   int     `json:"cameraLane"`
	CameraLabel  string  `json:"cameraLabel"`
	ContentType  string  `json:"contentType"`
	SizeBytes    int64   `json:"sizeBytes"`
	DurationMs   int64   `json:"durationMs"`
	SyncOffsetMs int64   `json:"syncOffsetMs"`
	Status       string  `json:"status"`
	PlaybackURL  *string `json:"playbackUrl,omitempty"`
	CreatedBy    *string `json:"createdBy"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

func toVideoResponse(v *film.Video) videoResponse {
	return videoResponse{
		ID:           v.ID.String(),
		GameID:       v.GameID.String(),
		Title:        v.Title,
		CameraLane:   v.CameraLane,
		CameraLabel:  v.CameraLabel,
		ContentType:  v.ContentType,
		SizeBytes:    v.SizeBytes,
		DurationMs:   v.DurationMs,
		SyncOffsetMs: v.SyncOffsetMs,
		Status:       v.Status,
		CreatedBy:    uuidString(v.CreatedBy),
		CreatedAt:    response.Time(v.CreatedAt),
		UpdatedAt:    response.Time(v.UpdatedAt),
	}
}

type uploadResponse struct {
	Video     videoResponse `json:"video"`
	UploadURL string        `json:"uploadUrl"`
	ExpiresAt string        `json:"expiresAt"`
}

// VideoHandler handles game film endpoints.
type VideoHandler struct {
	film  FilmService
	games GameLookup
	tiers TierLookup
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(svc FilmService, games GameLookup, tiers TierLookup) *VideoHandler {
	return &VideoHandler{film: svc, games: games, tiers: tiers}
}

func writeFilmError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, film.ErrVideoNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Video not found", requestID)
	case errors.Is(err, game.ErrGameNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Game not found", requestID)
	case errors.Is(err, film.ErrStorageDisabled):
		response.Err(w, http.StatusServiceUnavailable, response.CodeFeatureUnavailable, "Film storage is not configured", requestID)
	case errors.Is(err, film.ErrVideoLimitReached):
		response.Err(w, http.StatusConflict, response.CodeLimitReached, "Your plan does not allow more videos for this game", requestID)
	case errors.Is(err, film.ErrFileTooLarge):
		checkFields(w, []validation.FieldError{{Field: "sizeBytes", Message: "sizeBytes exceeds your plan's upload limit"}}, requestID)
	case errors.Is(err, film.ErrUnsupportedContentType):
		checkFields(w, []validation.FieldError{{Field: "contentType", Message: "contentType must be video/*"}}, requestID)
	case errors.Is(err, film.ErrUploadMissing):
		response.Err(w, http.StatusConflict, response.CodeConflict, "The file has not been uploaded yet", requestID)
	default:
		internalError(w, requestID, message, err)
	}
}

// Create handles POST /api/v1/games/{gameID}/videos.
func (h *VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, actorID := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	var req createVideoRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	if _, err := h.games.GetByID(r.Context(), teamID, gameID); err != nil {
		writeFilmError(w, requestID, "Failed to create video", err)
		return
	}
	t, err := h.tiers.Tier(r.Context(), teamID)
	if err != nil {
		internalError(w, requestID, "Failed to create video", err, "team", teamID)
		return
	}

	upload, err := h.film.BeginUpload(r.Context(), teamID, gameID,
		film.Limits{MaxVideosPerGame: t.MaxVideosPerGame, MaxUploadBytes: t.MaxUploadBytes},
		film.UploadRequest{
			Title:       strings.TrimSpace(req.Title),
			FileName:    req.FileName,
			ContentType: req.ContentType,
			SizeBytes:   req.SizeBytes,
			CameraLane:  req.CameraLane,
			CameraLabel: req.CameraLabel,
			CreatedBy:   actorID,
		})
	if err != nil {
		writeFilmError(w, requestID, "Failed to create video", err)
		return
	}

	response.Success(w, http.StatusCreated, uploadResponse{
		Video:     toVideoResponse(upload.Video),
		UploadURL: upload.UploadURL,
		ExpiresAt: response.Time(upload.ExpiresAt),
	}, requestID)
}

// ListByGame handles GET /api/v1/games/{gameID}/videos.
func (h *VideoHandler) ListByGame(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	if _, err := h.games.GetByID(r.Context(), teamID, gameID); err != nil {
		writeFilmError(w, requestID, "Failed to list videos", err)
		return
	}

	videos, err := h.film.ListByGame(r.Context(), teamID, gameID)
	if err != nil {
		internalError(w, requestID, "Failed to list videos", err)
		return
	}

	items := make([]videoResponse, 0, len(videos))
	for i := range videos {
		items = append(items, toVideoResponse(&videos[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// GetByID handles GET /api/v1/videos/{id}.
func (h *VideoHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	v, err := h.film.Get(r.Context(), teamID, id)
	if err != nil {
		writeFilmError(w, requestID, "Failed to get video", err)
		return
	}

	resp := toVideoResponse(v)
	playback, err := h.film.PlaybackURL(r.Context(), v)
	if err != nil {
		internalError(w, requestID, "Failed to get video", err, "video", id)
		return
	}
	if playback != "" {
		resp.PlaybackURL = &playback
	}

	response.Success(w, http.StatusOK, resp, requestID)
}

// Complete handles POST /api/v1/videos/{id}/complete.
func (h *VideoHandler) Complete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	t, err := h.tiers.Tier(r.Context(), teamID)
	if err != nil {
		internalError(w, requestID, "Failed to complete upload", err, "team", teamID)
		return
	}

	v, err := h.film.Complete(r.Context(), teamID, id, film.Limits{MaxVideosPerGame: t.MaxVideosPerGame, MaxUploadBytes: t.MaxUploadBytes})
	if err != nil {
		writeFilmError(w, requestID, "Failed to complete upload", err)
		return
	}

	response.Success(w, http.StatusOK, toVideoResponse(v), requestID)
}

// Update handles PATCH /api/v1/videos/{id}.
func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updateVideoRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	v, err := h.film.Update(r.Context(), teamID, id, film.UpdateFields{
		Title:        req.Title,
		CameraLane:   req.CameraLane,
		CameraLabel:  req.CameraLabel,
		DurationMs:   req.DurationMs,
		SyncOffsetMs: req.SyncOffsetMs,
	})
	if err != nil {
		writeFilmError(w, requestID, "Failed to update video", err)
		return
	}

	response.Success(w, http.StatusOK, toVideoResponse(v), requestID)
}

// Delete handles DELETE /api/v1/videos/{id}.
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.film.Delete(r.Context(), teamID, id); err != nil {
		writeFilmError(w, requestID, "Failed to delete video", err)
		return
	}

	response.NoContent(w)
}
