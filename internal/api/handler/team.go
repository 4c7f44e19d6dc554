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
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/team"
)

// TeamReader loads teams.
type TeamReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*team.Team, error)
}

// TeamUpdater applies audited team changes.
type TeamUpdater interface {
	UpdateTeam(ctx context.Context, actor *auth.Identity, fields team.UpdateFields) (*team.Team, error)
}

type updateTeamRequest struct {
	Name   *string `json:"name" validate:"omitempty,notblank,max=255"`
	Level  *string `json:"level" validate:"omitempty,oneof=youth middle_school high_school other"`
	Season *int    `json:"season" validate:"omitempty,gte=2000,lte=2100"`
}

type teamResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Level     string `json:"level"`
	Season    int    `json:"season"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toTeamResponse(t *team.Team) teamResponse {
	return teamResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Level:     t.Level,
		Season:    t.Season,
		CreatedAt: response.Time(t.CreatedAt),
		UpdatedAt: response.Time(t.UpdatedAt),
	}
}

// TeamHandler handles the caller's own team.
type TeamHandler struct {
	teams   TeamReader
	updater TeamUpdater
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(teams TeamReader, updater TeamUpdater) *TeamHandler {
	return &TeamHandler{teams: teams, updater: updater}
}

// Get handles GET /api/v1/team.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	t, err := h.teams.GetByID(r.Context(), teamID)
	if err != nil {
		if errors.Is(err, team.ErrTeamNotFound) {
			response.Err(w, http.StatusNotFound, response.CodeNotFound, "Team not found", requestID)
			return
		}
		internalError(w, requestID, "Failed to get team", err, "team", teamID)
		return
	}

	response.Success(w, http.StatusOK, toTeamResponse(t), requestID)
}

// Update handles PATCH /api/v1/team.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req updateTeamRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}

	t, err := h.updater.UpdateTeam(r.Context(), middleware.GetIdentity(r.Context()), team.UpdateFields{
		Name:   req.Name,
		Level:  req.Level,
		Season: req.Season,
	})
	if err != nil {
		switch {
		case errors.Is(err, team.ErrTeamNotFound):
			response.Err(w, http.StatusNotFound, response.CodeNotFound, "Team not found", requestID)
		case errors.Is(err, team.ErrDuplicateTeamName):
			response.Err(w, http.StatusConflict, response.CodeDuplicateName, "A team with this name already exists", requestID)
		default:
			internalError(w, requestID, "Failed to update team", err)
		}
		return
	}

	response.Success(w, http.StatusOK, toTeamResponse(t), requestID)
}
