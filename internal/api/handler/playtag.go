package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/film"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/taggingtier"
)

// PlayLookup loads a playbook play.
type PlayLookup interface {
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*playbook.Play, error)
}

// VideoLookup loads a game video.
type VideoLookup interface {
	Get(ctx context.Context, teamID, id uuid.UUID) (*film.Video, error)
}

// playInstanceRequest carries the editable fields of a play instance. On
// update, nil fields keep their stored value.
type playInstanceRequest struct {
	VideoID     *uuid.UUID `json:"videoId"`
	PlayID      *uuid.UUID `json:"playId"`
	StartMs     *int64     `json:"startMs"`
	EndMs       *int64     `json:"endMs"`
	Quarter     *int       `json:"quarter"`
	Down        *int       `json:"down"`
	Distance    *int       `json:"distance"`
	YardsToGoal *int       `json:"yardsToGoal"`
	Hash        *string    `json:"hash"`
	Side        *string    `json:"side"`
	PlayType    *string    `json:"playType"`
	Formation   *string    `json:"formation" validate:"omitempty,max=120"`
	Personnel   *string    `json:"personnel" validate:"omitempty,max=20"`
	Direction   *string    `json:"direction"`
	Result      *string    `json:"result"`
	YardsGained *int       `json:"yardsGained"`
	FirstDown   *bool      `json:"firstDown"`
	Touchdown   *bool      `json:"touchdown"`
	Turnover    *bool      `json:"turnover"`
	Notes       *string    `json:"notes"`
	TaggingTier *string    `json:"taggingTier" validate:"omitempty,oneof=quick standard comprehensive"`
}

// apply copies the set fields onto p. A changed result resets the derived
// flags so that Normalize can recompute them.
func (req *playInstanceRequest) apply(p *playtag.PlayInstance) {
	if req.VideoID != nil {
		p.VideoID = req.VideoID
	}
	if req.PlayID != nil {
		p.PlayID = req.PlayID
	}
	if req.StartMs != nil {
		p.StartMs = *req.StartMs
	}
	if req.EndMs != nil {
		p.EndMs = *req.EndMs
	}
	if req.Quarter != nil {
		p.Quarter = req.Quarter
	}
	if req.Down != nil {
		p.Down = req.Down
	}
	if req.Distance != nil {
		p.Distance = req.Distance
	}
	if req.YardsToGoal != nil {
		p.YardsToGoal = req.YardsToGoal
	}
	if req.Hash != nil {
		p.Hash = req.Hash
	}
	if req.Side != nil {
		p.Side = *req.Side
	}
	if req.PlayType != nil {
		p.PlayType = *req.PlayType
	}
	if req.Formation != nil {
		p.Formation = *req.Formation
	}
	if req.Personnel != nil {
		p.Personnel = *req.Personnel
	}
	if req.Direction != nil {
		p.Direction = req.Direction
	}
	if req.Result != nil && *req.Result != p.Result {
		p.Result = *req.Result
		p.Touchdown, p.Turnover, p.FirstDown = false, false, false
	}
	if req.YardsGained != nil {
		p.YardsGained = *req.YardsGained
	}
	if req.FirstDown != nil {
		p.FirstDown = *req.FirstDown
	}
	if req.Touchdown != nil {
		p.Touchdown = *req.Touchdown
	}
	if req.Turnover != nil {
		p.Turnover = *req.Turnover
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
}

type playInstanceResponse struct {
	ID          string   `json:"id"`
	GameID      string   `json:"gameId"`
	VideoID     *string  `json:"videoId"`
	PlayID      *string  `json:"playId"`
	StartMs     int64    `json:"startMs"`
	EndMs       int64    `json:"endMs"`
	Quarter     *int     `json:"quarter"`
	Down        *int     `json:"down"`
	Distance    *int     `json:"distance"`
	YardsToGoal *int     `json:"yardsToGoal"`
	Hash        *string  `json:"hash"`
	Side        string   `json:"side"`
	PlayType    string   `json:"playType"`
	Formation   string   `json:"formation"`
	Personnel   string   `json:"personnel"`
	Direction   *string  `json:"direction"`
	Result      string   `json:"result"`
	YardsGained int      `json:"yardsGained"`
	FirstDown   bool     `json:"firstDown"`
	Touchdown   bool     `json:"touchdown"`
	Turnover    bool     `json:"turnover"`
	Notes       string   `json:"notes"`
	Source      string   `json:"source"`
	Confidence  *float64 `json:"confidence"`
	TaggingTier string   `json:"taggingTier"`
	CreatedBy   *string  `json:"createdBy"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func toPlayInstanceResponse(p *playtag.PlayInstance) playInstanceResponse {
	return playInstanceResponse{
		ID:          p.ID.String(),
		GameID:      p.GameID.String(),
		VideoID:     uuidString(p.VideoID),
		PlayID:      uuidString(p.PlayID),
		StartMs:     p.StartMs,
		EndMs:       p.EndMs,
		Quarter:     p.Quarter,
		Down:        p.Down,
		Distance:    p.Distance,
		YardsToGoal: p.YardsToGoal,
		Hash:        p.Hash,
		Side:        p.Side,
		PlayType:    p.PlayType,
		Formation:   p.Formation,
		Personnel:   p.Personnel,
		Direction:   p.Direction,
		Result:      p.Result,
		YardsGained: p.YardsGained,
		FirstDown:   p.FirstDown,
		Touchdown:   p.Touchdown,
		Turnover:    p.Turnover,
		Notes:       p.Notes,
		Source:      p.Source,
		Confidence:  p.Confidence,
		TaggingTier: p.TaggingTier,
		CreatedBy:   uuidString(p.CreatedBy),
		CreatedAt:   response.Time(p.CreatedAt),
		UpdatedAt:   response.Time(p.UpdatedAt),
	}
}

func toPlayInstanceResponses(ps []playtag.PlayInstance) []playInstanceResponse {
	items := make([]playInstanceResponse, 0, len(ps))
	for i := range ps {
		items = append(items, toPlayInstanceResponse(&ps[i]))
	}
	return items
}

// PlayTagHandler handles manual play tagging.
type PlayTagHandler struct {
	repo   playtag.Repository
	games  GameLookup
	plays  PlayLookup
	videos VideoLookup
}

// NewPlayTagHandler creates a new PlayTagHandler.
func NewPlayTagHandler(repo playtag.Repository, games GameLookup, plays PlayLookup, videos VideoLookup) *PlayTagHandler {
	return &PlayTagHandler{repo: repo, games: games, plays: plays, videos: videos}
}

func writePlayTagError(w http.ResponseWriter, requestID, message string, err error) {
	if errors.Is(err, playtag.ErrPlayInstanceNotFound) {
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Play instance not found", requestID)
		return
	}
	writeFilmError(w, requestID, message, err)
}

// checkLinks verifies that the linked video and playbook play belong to the
// team and the video to the game.
func (h *PlayTagHandler) checkLinks(ctx context.Context, p *playtag.PlayInstance) ([]validation.FieldError, error) {
	var errs []validation.FieldError
	if p.VideoID != nil {
		v, err := h.videos.Get(ctx, p.TeamID, *p.VideoID)
		switch {
		case errors.Is(err, film.ErrVideoNotFound):
			errs = append(errs, validation.FieldError{Field: "videoId", Message: "videoId does not reference a video of this team"})
		case err != nil:
			return nil, err
		case v.GameID != p.GameID:
			errs = append(errs, validation.FieldError{Field: "videoId", Message: "videoId belongs to another game"})
		}
	}
	if p.PlayID != nil {
		if _, err := h.plays.GetByID(ctx, p.TeamID, *p.PlayID); err != nil {
			if !errors.Is(err, playbook.ErrPlayNotFound) {
				return nil, err
			}
			errs = append(errs, validation.FieldError{Field: "playId", Message: "playId does not reference a play in your playbook"})
		}
	}
	return errs, nil
}

// Create handles POST /api/v1/games/{gameID}/plays.
func (h *PlayTagHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, actorID := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	var req playInstanceRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}
	if _, err := h.games.GetByID(r.Context(), teamID, gameID); err != nil {
		writePlayTagError(w, requestID, "Failed to create play instance", err)
		return
	}

	p := &playtag.PlayInstance{
		TeamID:    teamID,
		GameID:    gameID,
		Source:    playtag.SourceManual,
		CreatedBy: actorID,
	}
	req.apply(p)
	tierName := taggingtier.Comprehensive
	if req.TaggingTier != nil {
		tierName = *req.TaggingTier
	}
	tt, err := taggingtier.ForName(tierName)
	if err != nil {
		checkFields(w, []validation.FieldError{{Field: "taggingTier", Message: err.Error()}}, requestID)
		return
	}
	tt.Apply(p)
	playtag.Normalize(p)

	fieldErrors := validation.PlayInstance(p)
	linkErrors, err := h.checkLinks(r.Context(), p)
	if err != nil {
		internalError(w, requestID, "Failed to create play instance", err)
		return
	}
	if !checkFields(w, append(fieldErrors, linkErrors...), requestID) {
		return
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		writePlayTagError(w, requestID, "Failed to create play instance", err)
		return
	}

	response.Success(w, http.StatusCreated, toPlayInstanceResponse(p), requestID)
}

// ListByGame handles GET /api/v1/games/{gameID}/plays.
func (h *PlayTagHandler) ListByGame(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	down, ok := queryInt(w, r, "down", requestID)
	if !ok {
		return
	}
	if _, err := h.games.GetByID(r.Context(), teamID, gameID); err != nil {
		writePlayTagError(w, requestID, "Failed to list play instances", err)
		return
	}

	plays, err := h.repo.ListByGame(r.Context(), teamID, gameID, playtag.ListFilter{
		Side:   queryString(r, "side"),
		Down:   down,
		Source: queryString(r, "source"),
	})
	if err != nil {
		internalError(w, requestID, "Failed to list play instances", err)
		return
	}

	items := toPlayInstanceResponses(plays)
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Update handles PATCH /api/v1/play-instances/{id}.
func (h *PlayTagHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req playInstanceRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	p, err := h.repo.GetByID(r.Context(), teamID, id)
	if err != nil {
		writePlayTagError(w, requestID, "Failed to update play instance", err)
		return
	}
	req.apply(p)
	if req.TaggingTier != nil {
		tt, err := taggingtier.ForName(*req.TaggingTier)
		if err != nil {
			checkFields(w, []validation.FieldError{{Field: "taggingTier", Message: err.Error()}}, requestID)
			return
		}
		tt.Apply(p)
	}
	playtag.Normalize(p)

	fieldErrors := validation.PlayInstance(p)
	linkErrors, err := h.checkLinks(r.Context(), p)
	if err != nil {
		internalError(w, requestID, "Failed to update play instance", err)
		return
	}
	if !checkFields(w, append(fieldErrors, linkErrors...), requestID) {
		return
	}

	if err := h.repo.Update(r.Context(), p); err != nil {
		writePlayTagError(w, requestID, "Failed to update play instance", err)
		return
	}

	response.Success(w, http.StatusOK, toPlayInstanceResponse(p), requestID)
}

// Delete handles DELETE /api/v1/play-instances/{id}.
func (h *PlayTagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), teamID, id); err != nil {
		writePlayTagError(w, requestID, "Failed to delete play instance", err)
		return
	}

	response.NoContent(w)
}

type bulkDeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// DeleteBySource handles DELETE /api/v1/games/{gameID}/plays?source=ai.
func (h *PlayTagHandler) DeleteBySource(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	source := r.URL.Query().Get("source")
	if source != playtag.SourceAI && source != playtag.SourceManual {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidQuery, "source must be \"ai\" or \"manual\"", requestID)
		return
	}
	if _, err := h.games.GetByID(r.Context(), teamID, gameID); err != nil {
		writePlayTagError(w, requestID, "Failed to delete play instances", err)
		return
	}

	n, err := h.repo.DeleteBySource(r.Context(), teamID, gameID, source)
	if err != nil {
		internalError(w, requestID, "Failed to delete play instances", err, "game", gameID)
		return
	}

	response.Success(w, http.StatusOK, bulkDeleteResponse{Deleted: n}, requestID)
}
