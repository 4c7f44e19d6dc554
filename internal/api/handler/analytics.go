package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/huddlehq/huddle/internal/analytics"
	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/playtag"
)

// PlayHistory loads tagged play instances for reporting.
type PlayHistory interface {
	ListByGame(ctx context.Context, teamID, gameID uuid.UUID, filter playtag.ListFilter) ([]playtag.PlayInstance, error)
	ListBySeason(ctx context.Context, teamID uuid.UUID, season int) ([]playtag.PlayInstance, error)
}

type reportResponse struct {
	GameID *string `json:"gameId,omitempty"`
	Season *int    `json:"season,omitempty"`
	analytics.Report
}

// AnalyticsHandler serves game and season reports.
type AnalyticsHandler struct {
	plays PlayHistory
	refs  PlaybookRefs
	games GameLookup
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(plays PlayHistory, refs PlaybookRefs, games GameLookup) *AnalyticsHandler {
	return &AnalyticsHandler{plays: plays, refs: refs, games: games}
}

func reportSide(w http.ResponseWriter, r *http.Request, requestID string) (string, bool) {
	side := r.URL.Query().Get("side")
	if side == "" {
		return playbook.SideOffense, true
	}
	if !slices.Contains(playtag.ValidSides, side) {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidQuery, "side must be offense, defense or special_teams", requestID)
		return "", false
	}
	return side, true
}

func playNames(refs []playbook.Ref) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(refs))
	for _, ref := range refs {
		names[ref.ID] = ref.Name
	}
	return names
}

// Game handles GET /api/v1/games/{gameID}/report?side=offense.
func (h *AnalyticsHandler) Game(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	gameID, ok := urlID(w, r, "gameID", requestID)
	if !ok {
		return
	}
	side, ok := reportSide(w, r, requestID)
	if !ok {
		return
	}
	if _, err := h.games.GetByID(r.Context(), teamID, gameID); err != nil {
		writeGameError(w, requestID, "Failed to build game report", err)
		return
	}

	var (
		plays []playtag.PlayInstance
		refs  []playbook.Ref
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		plays, err = h.plays.ListByGame(ctx, teamID, gameID, playtag.ListFilter{Side: &side})
		return err
	})
	g.Go(func() error {
		var err error
		refs, err = h.refs.Refs(ctx, teamID)
		return err
	})
	if err := g.Wait(); err != nil {
		internalError(w, requestID, "Failed to build game report", err, "game", gameID)
		return
	}

	id := gameID.String()
	response.Success(w, http.StatusOK, reportResponse{
		GameID: &id,
		Report: analytics.Build(plays, side, playNames(refs)),
	}, requestID)
}

// Season handles GET /api/v1/reports/season?season=YYYY&side=offense. The
// season defaults to the current year.
func (h *AnalyticsHandler) Season(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	season, ok := queryInt(w, r, "season", requestID)
	if !ok {
		return
	}
	if season == nil {
		year := time.Now().UTC().Year()
		season = &year
	}
	side, ok := reportSide(w, r, requestID)
	if !ok {
		return
	}

	var (
		plays []playtag.PlayInstance
		refs  []playbook.Ref
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		plays, err = h.plays.ListBySeason(ctx, teamID, *season)
		return err
	})
	g.Go(func() error {
		var err error
		refs, err = h.refs.Refs(ctx, teamID)
		return err
	})
	if err := g.Wait(); err != nil {
		internalError(w, requestID, "Failed to build season report", err, "season", *season)
		return
	}

	response.Success(w, http.StatusOK, reportResponse{
		Season: season,
		Report: analytics.Build(plays, side, playNames(refs)),
	}, requestID)
}
