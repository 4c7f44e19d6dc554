package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/camerasync"
	"github.com/huddlehq/huddle/internal/film"
)

type laneGaps struct {
	Lane int                   `json:"lane"`
	Gaps []camerasync.Interval `json:"gaps"`
}

type timelineResponse struct {
	GameID   string                 `json:"gameId"`
	AtMs     int64                  `json:"atMs"`
	Lanes    []int                  `json:"lanes"`
	Extent   *camerasync.Interval   `json:"extent"`
	Clips    []camerasync.Clip      `json:"clips"`
	Snapshot []camerasync.LaneState `json:"snapshot"`
	Gaps     []laneGaps             `json:"gaps"`
}

type syncRequest struct {
	ReferenceVideoID uuid.UUID `json:"referenceVideoId" validate:"required"`
	ReferenceMs      int64     `json:"referenceMs" validate:"gte=0"`
	VideoID          uuid.UUID `json:"videoId" validate:"required"`
	VideoMs          int64     `json:"videoMs" validate:"gte=0"`
}

// TimelineHandler handles the multi-camera game timeline.
type TimelineHandler struct {
	film  FilmService
	games GameLookup
}

// NewTimelineHandler creates a new TimelineHandler.
func NewTimelineHandler(svc FilmService, games GameLookup) *TimelineHandler {
	return &TimelineHandler{film: svc, games: games}
}

// Get handles GET /api/v1/games/{gameID}/timeline?t=<ms>. Without t the
// snapshot is taken at the start of the extent.
func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	at, ok := queryInt(w, r, "t", requestID)
	if !ok {
		return
	}
	if _, err := h.games.GetByID(r.Context(), teamID, gameID); err != nil {
		writeFilmError(w, requestID, "Failed to build timeline", err)
		return
	}

	videos, err := h.film.ListByGame(r.Context(), teamID, gameID)
	if err != nil {
		internalError(w, requestID, "Failed to build timeline", err, "game", gameID)
		return
	}
	clips := film.Clips(videos)

	resp := timelineResponse{
		GameID:   gameID.String(),
		Lanes:    camerasync.Lanes(clips),
		Clips:    clips,
		Snapshot: []camerasync.LaneState{},
		Gaps:     []laneGaps{},
	}
	extent, err := camerasync.Extent(clips)
	if errors.Is(err, camerasync.ErrNoClips) {
		if at != nil {
			resp.AtMs = int64(*at)
		}
		resp.Lanes = []int{}
		response.Success(w, http.StatusOK, resp, requestID)
		return
	}

	resp.Extent = &extent
	resp.AtMs = extent.StartMs
	if at != nil {
		resp.AtMs = int64(*at)
	}
	resp.Snapshot = camerasync.Snapshot(clips, resp.AtMs)
	for _, lane := range resp.Lanes {
		gaps := camerasync.Gaps(clips, lane, extent.StartMs, extent.EndMs)
		if gaps == nil {
			gaps = []camerasync.Interval{}
		}
		resp.Gaps = append(resp.Gaps, laneGaps{Lane: lane, Gaps: gaps})
	}

	response.Success(w, http.StatusOK, resp, requestID)
}

// Sync handles POST /api/v1/games/{gameID}/timeline/sync. It moves the second
// video so that videoMs lines up with referenceMs in the reference video.
func (h *TimelineHandler) Sync(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	var req syncRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.Struct(req)
	if req.VideoID == req.ReferenceVideoID {
		fieldErrors = append(fieldErrors, validation.FieldError{Field: "videoId", Message: "videoId must differ from referenceVideoId"})
	}
	if !checkFields(w, fieldErrors, requestID) {
		return
	}

	ref, err := h.film.Get(r.Context(), teamID, req.ReferenceVideoID)
	if err != nil {
		writeFilmError(w, requestID, "Failed to sync videos", err)
		return
	}
	other, err := h.film.Get(r.Context(), teamID, req.VideoID)
	if err != nil {
		writeFilmError(w, requestID, "Failed to sync videos", err)
		return
	}
	if ref.GameID != gameID || other.GameID != gameID {
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Video not found", requestID)
		return
	}

	offset, err := camerasync.AlignTo(clipOf(ref), clipOf(other), req.ReferenceMs, req.VideoMs)
	if err != nil {
		checkFields(w, []validation.FieldError{{Field: "referenceMs", Message: "positions must fall within each video's duration"}}, requestID)
		return
	}

	v, err := h.film.SetOffset(r.Context(), teamID, other.ID, offset)
	if err != nil {
		writeFilmError(w, requestID, "Failed to sync videos", err)
		return
	}

	response.Success(w, http.StatusOK, toVideoResponse(v), requestID)
}

func clipOf(v *film.Video) camerasync.Clip {
	return camerasync.Clip{VideoID: v.ID, Lane: v.CameraLane, OffsetMs: v.SyncOffsetMs, DurationMs: v.DurationMs}
}
