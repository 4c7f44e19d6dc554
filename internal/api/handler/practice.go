package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/analytics"
	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/player"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/practice"
)

const dateLayout = "2006-01-02"

// PracticePlanner generates practice plans with the AI model.
type PracticePlanner interface {
	Generate(ctx context.Context, in practice.GenerateInput) (*practice.Plan, error)
	Stream(ctx context.Context, in practice.GenerateInput, onChunk func(chunk string) error) (*practice.Plan, error)
}

// RosterLister lists a team's active players.
type RosterLister interface {
	ListActive(ctx context.Context, teamID uuid.UUID) ([]player.Player, error)
}

// GamePlays lists the play instances tagged on a game.
type GamePlays interface {
	ListByGame(ctx context.Context, teamID, gameID uuid.UUID, filter playtag.ListFilter) ([]playtag.PlayInstance, error)
}

type periodRequest struct {
	Name    string `json:"name" validate:"notblank,max=120"`
	Minutes int    `json:"minutes" validate:"gte=1,lte=300"`
	Group   string `json:"group" validate:"omitempty,oneof=all offense defense special_teams individual"`
	Drill   string `json:"drill" validate:"max=200"`
	Notes   string `json:"notes" validate:"max=2000"`
}

func toPeriods(in []periodRequest) []practice.Period {
	out := make([]practice.Period, 0, len(in))
	for _, p := range in {
		group := p.Group
		if group == "" {
			group = "all"
		}
		out = append(out, practice.Period{
			Name:    strings.TrimSpace(p.Name),
			Minutes: p.Minutes,
			Group:   group,
			Drill:   p.Drill,
			Notes:   p.Notes,
		})
	}
	return out
}

type createPlanRequest struct {
	Title       string          `json:"title" validate:"notblank,max=200"`
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	DurationMin int             `json:"durationMin" validate:"gte=15,lte=300"`
	Focus       string          `json:"focus" validate:"max=500"`
	Periods     []periodRequest `json:"periods" validate:"max=40,dive"`
}

type updatePlanRequest struct {
	Title       *string          `json:"title" validate:"omitempty,notblank,max=200"`
	Date        *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	DurationMin *int             `json:"durationMin" validate:"omitempty,gte=15,lte=300"`
	Focus       *string          `json:"focus" validate:"omitempty,max=500"`
	Periods     *[]periodRequest `json:"periods" validate:"omitempty,max=40,dive"`
}

type generatePlanRequest struct {
	Date           string     `json:"date" validate:"required,datetime=2006-01-02"`
	DurationMin    int        `json:"durationMin" validate:"gte=15,lte=300"`
	Focus          string     `json:"focus" validate:"max=500"`
	OpponentGameID *uuid.UUID `json:"opponentGameId"`
}

type planResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Date         string            `json:"date"`
	DurationMin  int               `json:"durationMin"`
	TotalMinutes int               `json:"totalMinutes"`
	Focus        string            `json:"focus"`
	Periods      []practice.Period `json:"periods"`
	Source       string            `json:"source"`
	CreatedBy    *string           `json:"createdBy"`
	CreatedAt    string            `json:"createdAt"`
	UpdatedAt    string            `json:"updatedAt"`
}

func toPlanResponse(p *practice.Plan) planResponse {
	periods := p.Periods
	if periods == nil {
		periods = []practice.Period{}
	}
	return planResponse{
		ID:           p.ID.String(),
		Title:        p.Title,
		Date:         p.Date.Format(dateLayout),
		DurationMin:  p.DurationMin,
		TotalMinutes: p.TotalMinutes(),
		Focus:        p.Focus,
		Periods:      periods,
		Source:       p.Source,
		CreatedBy:    uuidString(p.CreatedBy),
		CreatedAt:    response.Time(p.CreatedAt),
		UpdatedAt:    response.Time(p.UpdatedAt),
	}
}

// PracticeHandler handles practice plans.
type PracticeHandler struct {
	repo    practice.Repository
	planner PracticePlanner
	roster  RosterLister
	games   GameLookup
	plays   GamePlays
}

// NewPracticeHandler creates a new PracticeHandler.
func NewPracticeHandler(repo practice.Repository, planner PracticePlanner, roster RosterLister, games GameLookup, plays GamePlays) *PracticeHandler {
	return &PracticeHandler{repo: repo, planner: planner, roster: roster, games: games, plays: plays}
}

func writePracticeError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, practice.ErrPlanNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Practice plan not found", requestID)
	case errors.Is(err, game.ErrGameNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Game not found", requestID)
	case errors.Is(err, practice.ErrPeriodsExceedDuration):
		checkFields(w, []validation.FieldError{{Field: "periods", Message: "total period minutes exceed durationMin"}}, requestID)
	case errors.Is(err, practice.ErrGenerationFailed):
		response.Err(w, http.StatusBadGateway, response.CodeUpstream, "The AI service did not return a usable plan; your tokens were refunded", requestID)
	default:
		writeAIError(w, requestID, message, err)
	}
}

// Create handles POST /api/v1/practice-plans.
func (h *PracticeHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, actorID := scope(r)

	var req createPlanRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	date, _ := time.Parse(dateLayout, req.Date)
	p := &practice.Plan{
		TeamID:      teamID,
		Title:       strings.TrimSpace(req.Title),
		Date:        date,
		DurationMin: req.DurationMin,
		Focus:       req.Focus,
		Periods:     toPeriods(req.Periods),
		Source:      practice.SourceManual,
		CreatedBy:   actorID,
	}
	if !checkFields(w, validation.PracticePlan(p), requestID) {
		return
	}

	if err := h.repo.Create(r.Context(), p); err != nil {
		writePracticeError(w, requestID, "Failed to create practice plan", err)
		return
	}

	response.Success(w, http.StatusCreated, toPlanResponse(p), requestID)
}

// List handles GET /api/v1/practice-plans?from=&to=.
func (h *PracticeHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}
	filter := practice.ListFilter{Page: page, Limit: limit}
	if filter.From, ok = queryDate(w, r, "from", requestID); !ok {
		return
	}
	if filter.To, ok = queryDate(w, r, "to", requestID); !ok {
		return
	}

	result, err := h.repo.List(r.Context(), teamID, filter)
	if err != nil {
		internalError(w, requestID, "Failed to list practice plans", err)
		return
	}

	items := make([]planResponse, 0, len(result.Plans))
	for i := range result.Plans {
		items = append(items, toPlanResponse(&result.Plans[i]))
	}
	response.SuccessList(w, http.StatusOK, items, result.Total, result.Page, result.Limit, requestID)
}

// GetByID handles GET /api/v1/practice-plans/{id}.
func (h *PracticeHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	p, err := h.repo.GetByID(r.Context(), teamID, id)
	if err != nil {
		writePracticeError(w, requestID, "Failed to get practice plan", err)
		return
	}

	response.Success(w, http.StatusOK, toPlanResponse(p), requestID)
}

// Update handles PATCH /api/v1/practice-plans/{id}. The merged plan must
// still fit its periods into the duration.
func (h *PracticeHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updatePlanRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	fields := practice.UpdateFields{
		Title:       req.Title,
		DurationMin: req.DurationMin,
		Focus:       req.Focus,
	}
	if req.Date != nil {
		d, _ := time.Parse(dateLayout, *req.Date)
		fields.Date = &d
	}
	if req.Periods != nil {
		periods := toPeriods(*req.Periods)
		fields.Periods = &periods
	}

	existing, err := h.repo.GetByID(r.Context(), teamID, id)
	if err != nil {
		writePracticeError(w, requestID, "Failed to update practice plan", err)
		return
	}
	merged := *existing
	practice.ApplyUpdate(&merged, fields)
	if !checkFields(w, validation.PracticePlan(&merged), requestID) {
		return
	}

	p, err := h.repo.Update(r.Context(), teamID, id, fields)
	if err != nil {
		writePracticeError(w, requestID, "Failed to update practice plan", err)
		return
	}

	response.Success(w, http.StatusOK, toPlanResponse(p), requestID)
}

// Delete handles DELETE /api/v1/practice-plans/{id}.
func (h *PracticeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), teamID, id); err != nil {
		writePracticeError(w, requestID, "Failed to delete practice plan", err)
		return
	}

	response.NoContent(w)
}

// Generate handles POST /api/v1/practice-plans/generate. With
// Accept: text/event-stream the model output is forwarded as it arrives and
// the stream ends with a "done" event.
func (h *PracticeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, actorID := scope(r)

	var req generatePlanRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	in, err := h.buildInput(r.Context(), teamID, actorID, req)
	if err != nil {
		writePracticeError(w, requestID, "Failed to generate practice plan", err)
		return
	}

	if !wantsEventStream(r) {
		p, err := h.planner.Generate(r.Context(), in)
		if err != nil {
			writePracticeError(w, requestID, "Failed to generate practice plan", err)
			return
		}
		response.Success(w, http.StatusCreated, toPlanResponse(p), requestID)
		return
	}

	sse := newSSEWriter(w)
	p, err := h.planner.Stream(r.Context(), in, func(chunk string) error {
		return sse.Send("", chunk)
	})
	if err != nil {
		if !sse.started {
			writePracticeError(w, requestID, "Failed to generate practice plan", err)
			return
		}
		slog.Warn("practice plan stream failed", "team", teamID, "error", err, "requestId", requestID)
		_ = sse.Send("error", `{"message":"generation failed"}`)
		return
	}

	done := map[string]any{"requestId": requestID, "plan": nil}
	if p != nil {
		done["plan"] = toPlanResponse(p)
	}
	payload, _ := json.Marshal(done)
	_ = sse.Send("done", string(payload))
}

// buildInput gathers the roster and, when an opponent game is given, the
// tendencies tagged on it.
func (h *PracticeHandler) buildInput(ctx context.Context, teamID uuid.UUID, actorID *uuid.UUID, req generatePlanRequest) (practice.GenerateInput, error) {
	date, _ := time.Parse(dateLayout, req.Date)
	in := practice.GenerateInput{
		TeamID:      teamID,
		ActorID:     actorID,
		Date:        date,
		DurationMin: req.DurationMin,
		Focus:       req.Focus,
	}

	roster, err := h.roster.ListActive(ctx, teamID)
	if err != nil {
		return in, err
	}
	in.RosterByGroup = player.CountByGroup(roster)

	if req.OpponentGameID != nil {
		g, err := h.games.GetByID(ctx, teamID, *req.OpponentGameID)
		if err != nil {
			return in, err
		}
		plays, err := h.plays.ListByGame(ctx, teamID, g.ID, playtag.ListFilter{})
		if err != nil {
			return in, err
		}
		// Our defensive snaps are the opponent's offense.
		scan := analytics.Build(plays, playbook.SideDefense, nil)
		in.Opponent = g.Opponent
		in.OpponentScan = &scan
	}
	return in, nil
}

func queryDate(w http.ResponseWriter, r *http.Request, name, requestID string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidQuery, name+" must be a date (YYYY-MM-DD)", requestID)
		return nil, false
	}
	return &d, true
}
