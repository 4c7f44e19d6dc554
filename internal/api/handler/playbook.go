package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/playbook"
)

type createPlayRequest struct {
	Name      string          `json:"name" validate:"notblank,max=120"`
	Side      string          `json:"side" validate:"required,oneof=offense defense special_teams"`
	Formation string          `json:"formation" validate:"max=120"`
	PlayType  string          `json:"playType" validate:"omitempty,oneof=run pass rpo screen special blitz coverage"`
	Personnel string          `json:"personnel" validate:"max=20"`
	Tags      []string        `json:"tags" validate:"max=20,dive,notblank,max=50"`
	Diagram   json.RawMessage `json:"diagram"`
	Notes     string          `json:"notes" validate:"max=4000"`
}

type updatePlayRequest struct {
	Name      *string          `json:"name" validate:"omitempty,notblank,max=120"`
	Side      *string          `json:"side" validate:"omitempty,oneof=offense defense special_teams"`
	Formation *string          `json:"formation" validate:"omitempty,max=120"`
	PlayType  *string          `json:"playType" validate:"omitempty,oneof=run pass rpo screen special blitz coverage"`
	Personnel *string          `json:"personnel" validate:"omitempty,max=20"`
	Tags      *[]string        `json:"tags" validate:"omitempty,max=20,dive,notblank,max=50"`
	Diagram   *json.RawMessage `json:"diagram"`
	Notes     *string          `json:"notes" validate:"omitempty,max=4000"`
}

type playResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Side      string          `json:"side"`
	Formation string          `json:"formation"`
	PlayType  string          `json:"playType"`
	Personnel string          `json:"personnel"`
	Tags      []string        `json:"tags"`
	Diagram   json.RawMessage `json:"diagram"`
	Notes     string          `json:"notes"`
	CreatedBy *string         `json:"createdBy"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

func toPlayResponse(p *playbook.Play) playResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	diagram := p.Diagram
	if len(diagram) == 0 {
		diagram = json.RawMessage("null")
	}
	return playResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Side:      p.Side,
		Formation: p.Formation,
		PlayType:  p.PlayType,
		Personnel: p.Personnel,
		Tags:      tags,
		Diagram:   diagram,
		Notes:     p.Notes,
		CreatedBy: uuidString(p.CreatedBy),
		CreatedAt: response.Time(p.CreatedAt),
		UpdatedAt: response.Time(p.UpdatedAt),
	}
}

func diagramErrors(d json.RawMessage) []validation.FieldError {
	if err := playbook.CheckDiagram(d); err != nil {
		return []validation.FieldError{{Field: "diagram", Message: err.Error()}}
	}
	return nil
}

// PlaybookHandler handles playbook endpoints.
type PlaybookHandler struct {
	repo playbook.Repository
}

// NewPlaybookHandler creates a new PlaybookHandler.
func NewPlaybookHandler(repo playbook.Repository) *PlaybookHandler {
	return &PlaybookHandler{repo: repo}
}

func (h *PlaybookHandler) writeRepoError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, playbook.ErrPlayNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Play not found", requestID)
	case errors.Is(err, playbook.ErrDuplicatePlayName):
		response.Err(w, http.StatusConflict, response.CodeDuplicateName, "A play with this name already exists", requestID)
	default:
		internalError(w, requestID, message, err)
	}
}

// Create handles POST /api/v1/plays.
func (h *PlaybookHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, actorID := scope(r)

	var req createPlayRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := append(validation.Struct(req), diagramErrors(req.Diagram)...)
	if !checkFields(w, fieldErrors, requestID) {
		return
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	p := &playbook.Play{
		TeamID:    teamID,
		Name:      strings.TrimSpace(req.Name),
		Side:      req.Side,
		Formation: strings.TrimSpace(req.Formation),
		PlayType:  req.PlayType,
		Personnel: req.Personnel,
		Tags:      tags,
		Diagram:   req.Diagram,
		Notes:     req.Notes,
		CreatedBy: actorID,
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		h.writeRepoError(w, requestID, "Failed to create play", err)
		return
	}

	response.Success(w, http.StatusCreated, toPlayResponse(p), requestID)
}

// List handles GET /api/v1/plays.
func (h *PlaybookHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}
	filter := playbook.ListFilter{
		Side:      queryString(r, "side"),
		Formation: queryString(r, "formation"),
		Tag:       queryString(r, "tag"),
		Page:      page,
		Limit:     limit,
	}

	result, err := h.repo.List(r.Context(), teamID, filter)
	if err != nil {
		internalError(w, requestID, "Failed to list plays", err)
		return
	}

	items := make([]playResponse, 0, len(result.Plays))
	for i := range result.Plays {
		items = append(items, toPlayResponse(&result.Plays[i]))
	}
	response.SuccessList(w, http.StatusOK, items, result.Total, result.Page, result.Limit, requestID)
}

// GetByID handles GET /api/v1/plays/{id}.
func (h *PlaybookHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	p, err := h.repo.GetByID(r.Context(), teamID, id)
	if err != nil {
		h.writeRepoError(w, requestID, "Failed to get play", err)
		return
	}

	response.Success(w, http.StatusOK, toPlayResponse(p), requestID)
}

// Update handles PATCH /api/v1/plays/{id}.
func (h *PlaybookHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updatePlayRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.Struct(req)
	if req.Diagram != nil {
		fieldErrors = append(fieldErrors, diagramErrors(*req.Diagram)...)
	}
	if !checkFields(w, fieldErrors, requestID) {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}

	p, err := h.repo.Update(r.Context(), teamID, id, playbook.UpdateFields{
		Name:      req.Name,
		Side:      req.Side,
		Formation: req.Formation,
		PlayType:  req.PlayType,
		Personnel: req.Personnel,
		Tags:      req.Tags,
		Diagram:   req.Diagram,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeRepoError(w, requestID, "Failed to update play", err)
		return
	}

	response.Success(w, http.StatusOK, toPlayResponse(p), requestID)
}

// Delete handles DELETE /api/v1/plays/{id}.
func (h *PlaybookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), teamID, id); err != nil {
		h.writeRepoError(w, requestID, "Failed to delete play", err)
		return
	}

	response.NoContent(w)
}
