package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/game"
)

// GameFilm removes stored film before a game's rows cascade away.
type GameFilm interface {
	RemoveGameObjects(ctx context.Context, teamID, gameID uuid.UUID)
}

type gamePlanRequest struct {
	Keys          []string `json:"keys" validate:"max=20,dive,max=200"`
	OpeningScript []string `json:"openingScript" validate:"max=40,dive,max=120"`
	Notes         string   `json:"notes" validate:"max=4000"`
}

func (p *gamePlanRequest) toPlan() *game.Plan {
	if p == nil {
		return nil
	}
	plan := &game.Plan{Keys: p.Keys, OpeningScript: p.OpeningScript, Notes: p.Notes}
	if plan.Keys == nil {
		plan.Keys = []string{}
	}
	if plan.OpeningScript == nil {
		plan.OpeningScript = []string{}
	}
	return plan
}

type createGameRequest struct {
	Opponent      string           `json:"opponent" validate:"notblank,max=120"`
	KickoffAt     time.Time        `json:"kickoffAt" validate:"required"`
	Location      string           `json:"location" validate:"max=200"`
	IsHome        bool             `json:"isHome"`
	GameType      string           `json:"gameType" validate:"omitempty,oneof=regular scrimmage playoff"`
	TeamScore     *int             `json:"teamScore" validate:"omitempty,gte=0,lte=255"`
	OpponentScore *int             `json:"opponentScore" validate:"omitempty,gte=0,lte=255"`
	Notes         string           `json:"notes" validate:"max=4000"`
	Plan          *gamePlanRequest `json:"plan"`
}

type updateGameRequest struct {
	Opponent      *string          `json:"opponent" validate:"omitempty,notblank,max=120"`
	KickoffAt     *time.Time       `json:"kickoffAt"`
	Location      *string          `json:"location" validate:"omitempty,max=200"`
	IsHome        *bool            `json:"isHome"`
	GameType      *string          `json:"gameType" validate:"omitempty,oneof=regular scrimmage playoff"`
	TeamScore     *int             `json:"teamScore" validate:"omitempty,gte=0,lte=255"`
	OpponentScore *int             `json:"opponentScore" validate:"omitempty,gte=0,lte=255"`
	Notes         *string          `json:"notes" validate:"omitempty,max=4000"`
	Plan          *gamePlanRequest `json:"plan"`
}

type gameResponse struct {
	ID            string    `json:"id"`
	Opponent      string    `json:"opponent"`
	KickoffAt     string    `json:"kickoffAt"`
	Season        int       `json:"season"`
	Location      string    `json:"location"`
	IsHome        bool      `json:"isHome"`
	GameType      string    `json:"gameType"`
	TeamScore     *int      `json:"teamScore"`
	OpponentScore *int      `json:"opponentScore"`
	Notes         string    `json:"notes"`
	Plan          game.Plan `json:"plan"`
	CreatedAt     string    `json:"createdAt"`
	UpdatedAt     string    `json:"updatedAt"`
}

func toGameResponse(g *game.Game) gameResponse {
	plan := g.Plan
	if plan.Keys == nil {
		plan.Keys = []string{}
	}
	if plan.OpeningScript == nil {
		plan.OpeningScript = []string{}
	}
	return gameResponse{
		ID:            g.ID.String(),
		Opponent:      g.Opponent,
		KickoffAt:     response.Time(g.KickoffAt),
		Season:        g.Season(),
		Location:      g.Location,
		IsHome:        g.IsHome,
		GameType:      g.GameType,
		TeamScore:     g.TeamScore,
		OpponentScore: g.OpponentScore,
		Notes:         g.Notes,
		Plan:          plan,
		CreatedAt:     response.Time(g.CreatedAt),
		UpdatedAt:     response.Time(g.UpdatedAt),
	}
}

// GameHandler handles game schedule and game plan endpoints.
type GameHandler struct {
	repo game.Repository
	film GameFilm
}

// NewGameHandler creates a new GameHandler. film may be nil.
func NewGameHandler(repo game.Repository, film GameFilm) *GameHandler {
	return &GameHandler{repo: repo, film: film}
}

func writeGameError(w http.ResponseWriter, requestID, message string, err error) {
	if errors.Is(err, game.ErrGameNotFound) {
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Game not found", requestID)
		return
	}
	internalError(w, requestID, message, err)
}

// Create handles POST /api/v1/games.
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	var req createGameRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	gameType := req.GameType
	if gameType == "" {
		gameType = game.TypeRegular
	}
	g := &game.Game{
		TeamID:        teamID,
		Opponent:      strings.TrimSpace(req.Opponent),
		KickoffAt:     req.KickoffAt.UTC(),
		Location:      req.Location,
		IsHome:        req.IsHome,
		GameType:      gameType,
		TeamScore:     req.TeamScore,
		OpponentScore: req.OpponentScore,
		Notes:         req.Notes,
	}
	if plan := req.Plan.toPlan(); plan != nil {
		g.Plan = *plan
	}

	if err := h.repo.Create(r.Context(), g); err != nil {
		writeGameError(w, requestID, "Failed to create game", err)
		return
	}

	response.Success(w, http.StatusCreated, toGameResponse(g), requestID)
}

// List handles GET /api/v1/games.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}
	season, ok := queryInt(w, r, "season", requestID)
	if !ok {
		return
	}

	result, err := h.repo.List(r.Context(), teamID, game.ListFilter{Season: season, Page: page, Limit: limit})
	if err != nil {
		internalError(w, requestID, "Failed to list games", err)
		return
	}

	items := make([]gameResponse, 0, len(result.Games))
	for i := range result.Games {
		items = append(items, toGameResponse(&result.Games[i]))
	}
	response.SuccessList(w, http.StatusOK, items, result.Total, result.Page, result.Limit, requestID)
}

// GetByID handles GET /api/v1/games/{id}.
func (h *GameHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	g, err := h.repo.GetByID(r.Context(), teamID, id)
	if err != nil {
		writeGameError(w, requestID, "Failed to get game", err)
		return
	}

	response.Success(w, http.StatusOK, toGameResponse(g), requestID)
}

// Update handles PATCH /api/v1/games/{id}.
func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updateGameRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}
	if req.KickoffAt != nil {
		k := req.KickoffAt.UTC()
		req.KickoffAt = &k
	}

	g, err := h.repo.Update(r.Context(), teamID, id, game.UpdateFields{
		Opponent:      req.Opponent,
		KickoffAt:     req.KickoffAt,
		Location:      req.Location,
		IsHome:        req.IsHome,
		GameType:      req.GameType,
		TeamScore:     req.TeamScore,
		OpponentScore: req.OpponentScore,
		Notes:         req.Notes,
		Plan:          req.Plan.toPlan(),
	})
	if err != nil {
		writeGameError(w, requestID, "Failed to update game", err)
		return
	}

	response.Success(w, http.StatusOK, toGameResponse(g), requestID)
}

// Delete handles DELETE /api/v1/games/{id}. Stored film is removed before the
// rows cascade.
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if _, err := h.repo.GetByID(r.Context(), teamID, id); err != nil {
		writeGameError(w, requestID, "Failed to delete game", err)
		return
	}
	if h.film != nil {
		h.film.RemoveGameObjects(r.Context(), teamID, id)
	}
	if err := h.repo.Delete(r.Context(), teamID, id); err != nil {
		writeGameError(w, requestID, "Failed to delete game", err)
		return
	}

	response.NoContent(w)
}
