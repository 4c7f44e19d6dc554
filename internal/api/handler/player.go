package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/player"
)

type createPlayerRequest struct {
	FirstName    string   `json:"firstName" validate:"notblank,max=100"`
	LastName     string   `json:"lastName" validate:"notblank,max=100"`
	JerseyNumber *int     `json:"jerseyNumber" validate:"required,gte=0,lte=99"`
	Positions    []string `json:"positions" validate:"max=5,dive,position"`
	Grade        *int     `json:"grade" validate:"omitempty,gte=6,lte=12"`
	HeightIn     *int     `json:"heightIn" validate:"omitempty,gte=36,lte=96"`
	WeightLb     *int     `json:"weightLb" validate:"omitempty,gte=50,lte=450"`
	Status       string   `json:"status" validate:"omitempty,oneof=active injured inactive"`
	Notes        string   `json:"notes" validate:"max=2000"`
}

type updatePlayerRequest struct {
	FirstName    *string   `json:"firstName" validate:"omitempty,notblank,max=100"`
	LastName     *string   `json:"lastName" validate:"omitempty,notblank,max=100"`
	JerseyNumber *int      `json:"jerseyNumber" validate:"omitempty,gte=0,lte=99"`
	Positions    *[]string `json:"positions" validate:"omitempty,max=5,dive,position"`
	Grade        *int      `json:"grade" validate:"omitempty,gte=6,lte=12"`
	HeightIn     *int      `json:"heightIn" validate:"omitempty,gte=36,lte=96"`
	WeightLb     *int      `json:"weightLb" validate:"omitempty,gte=50,lte=450"`
	Status       *string   `json:"status" validate:"omitempty,oneof=active injured inactive"`
	Notes        *string   `json:"notes" validate:"omitempty,max=2000"`
}

type playerResponse struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	JerseyNumber int      `json:"jerseyNumber"`
	Positions    []string `json:"positions"`
	Grade        *int     `json:"grade"`
	HeightIn     *int     `json:"heightIn"`
	WeightLb     *int     `json:"weightLb"`
	Status       string   `json:"status"`
	Notes        string   `json:"notes"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

func toPlayerResponse(p *player.Player) playerResponse {
	positions := p.Positions
	if positions == nil {
		positions = []string{}
	}
	return playerResponse{
		ID:           p.ID.String(),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		JerseyNumber: p.JerseyNumber,
		Positions:    positions,
		Grade:        p.Grade,
		HeightIn:     p.HeightIn,
		WeightLb:     p.WeightLb,
		Status:       p.Status,
		Notes:        p.Notes,
		CreatedAt:    response.Time(p.CreatedAt),
		UpdatedAt:    response.Time(p.UpdatedAt),
	}
}

type depthChartGroup struct {
	Position string           `json:"position"`
	Players  []playerResponse `json:"players"`
}

// PlayerHandler handles roster endpoints.
type PlayerHandler struct {
	repo player.Repository
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(repo player.Repository) *PlayerHandler {
	return &PlayerHandler{repo: repo}
}

func (h *PlayerHandler) writeRepoError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, player.ErrPlayerNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Player not found", requestID)
	case errors.Is(err, player.ErrDuplicateJersey):
		response.Err(w, http.StatusConflict, response.CodeDuplicateJersey, "Another active player already wears this number", requestID)
	default:
		internalError(w, requestID, message, err)
	}
}

// Create handles POST /api/v1/players.
func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	var req createPlayerRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	status := req.Status
	if status == "" {
		status = player.StatusActive
	}
	p := &player.Player{
		TeamID:       teamID,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		JerseyNumber: *req.JerseyNumber,
		Positions:    req.Positions,
		Grade:        req.Grade,
		HeightIn:     req.HeightIn,
		WeightLb:     req.WeightLb,
		Status:       status,
		Notes:        req.Notes,
	}
	if p.Positions == nil {
		p.Positions = []string{}
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		h.writeRepoError(w, requestID, "Failed to create player", err)
		return
	}

	response.Success(w, http.StatusCreated, toPlayerResponse(p), requestID)
}

// List handles GET /api/v1/players.
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}
	filter := player.ListFilter{
		Position: queryString(r, "position"),
		Status:   queryString(r, "status"),
		Page:     page,
		Limit:    limit,
	}

	result, err := h.repo.List(r.Context(), teamID, filter)
	if err != nil {
		internalError(w, requestID, "Failed to list players", err)
		return
	}

	items := make([]playerResponse, 0, len(result.Players))
	for i := range result.Players {
		items = append(items, toPlayerResponse(&result.Players[i]))
	}
	response.SuccessList(w, http.StatusOK, items, result.Total, result.Page, result.Limit, requestID)
}

// GetByID handles GET /api/v1/players/{id}.
func (h *PlayerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	p, err := h.repo.GetByID(r.Context(), teamID, id)
	if err != nil {
		h.writeRepoError(w, requestID, "Failed to get player", err)
		return
	}

	response.Success(w, http.StatusOK, toPlayerResponse(p), requestID)
}

// Update handles PATCH /api/v1/players/{id}.
func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updatePlayerRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	p, err := h.repo.Update(r.Context(), teamID, id, player.UpdateFields{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		JerseyNumber: req.JerseyNumber,
		Positions:    req.Positions,
		Grade:        req.Grade,
		HeightIn:     req.HeightIn,
		WeightLb:     req.WeightLb,
		Status:       req.Status,
		Notes:        req.Notes,
	})
	if err != nil {
		h.writeRepoError(w, requestID, "Failed to update player", err)
		return
	}

	response.Success(w, http.StatusOK, toPlayerResponse(p), requestID)
}

// Delete handles DELETE /api/v1/players/{id}.
func (h *PlayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), teamID, id); err != nil {
		h.writeRepoError(w, requestID, "Failed to delete player", err)
		return
	}

	response.NoContent(w)
}

// DepthChart handles GET /api/v1/depth-chart.
func (h *PlayerHandler) DepthChart(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	players, err := h.repo.ListActive(r.Context(), teamID)
	if err != nil {
		internalError(w, requestID, "Failed to build depth chart", err)
		return
	}

	chart := player.DepthChart(players)
	groups := make([]depthChartGroup, 0, len(chart))
	for _, entry := range chart {
		g := depthChartGroup{Position: entry.Position, Players: make([]playerResponse, 0, len(entry.Players))}
		for i := range entry.Players {
			g.Players = append(g.Players, toPlayerResponse(&entry.Players[i]))
		}
		groups = append(groups, g)
	}

	response.Success(w, http.StatusOK, groups, requestID)
}
