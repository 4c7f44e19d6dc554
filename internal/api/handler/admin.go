package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/team"
	"github.com/huddlehq/huddle/internal/tier"
)

// TeamDirectory lists and loads teams for the admin console.
type TeamDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*team.Team, error)
	List(ctx context.Context, filter team.ListFilter) (*team.ListResult, error)
}

// TeamRemover deletes a team and its stored film.
type TeamRemover interface {
	DeleteTeam(ctx context.Context, actorID uuid.UUID, teamID uuid.UUID, force bool) error
}

// SubscriptionAdmin is the subset of billing.Service used by platform admins.
type SubscriptionAdmin interface {
	StatusByTeam(ctx context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]billing.Subscription, error)
	Overview(ctx context.Context, teamID uuid.UUID) (*billing.Subscription, *billing.TokenBalance, billing.Access, error)
	ChangeTier(ctx context.Context, teamID uuid.UUID, tierName string, actor *uuid.UUID) (*billing.Subscription, error)
	SetStatus(ctx context.Context, teamID uuid.UUID, status string, actor *uuid.UUID) (*billing.Subscription, error)
	Grant(ctx context.Context, teamID uuid.UUID, amount int, note string, actor *uuid.UUID) (*billing.TokenBalance, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// AuditLister reads the audit log.
type AuditLister interface {
	List(ctx context.Context, filter audit.ListFilter) ([]audit.Entry, int, error)
}

// TableCounter reports row counts per table.
type TableCounter interface {
	TableCounts(ctx context.Context) (map[string]int64, error)
}

type updateSubscriptionRequest struct {
	Tier   string  `json:"tier" validate:"omitempty,notblank"`
	Status *string `json:"status" validate:"omitempty,oneof=trialing active past_due canceled expired"`
}

type grantTokensRequest struct {
	Amount int    `json:"amount" validate:"gt=0,lte=1000000"`
	Reason string `json:"reason" validate:"notblank,max=255"`
}

type adminTeamResponse struct {
	teamResponse
	Subscription *subscriptionResponse `json:"subscription"`
}

type adminTeamDetailResponse struct {
	teamResponse
	Subscription *subscriptionResponse `json:"subscription"`
	Tokens       *balanceResponse      `json:"tokens"`
}

type auditEntryResponse struct {
	ID         string         `json:"id"`
	ActorID    *string        `json:"actorId"`
	TeamID     *string        `json:"teamId"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Details    map[string]any `json:"details"`
	CreatedAt  string         `json:"createdAt"`
}

type statsResponse struct {
	Tables        map[string]int64 `json:"tables"`
	Subscriptions map[string]int   `json:"subscriptions"`
}

// AdminHandler handles the platform-admin console.
type AdminHandler struct {
	teams   TeamDirectory
	remover TeamRemover
	billing SubscriptionAdmin
	audit   AuditLister
	counts  TableCounter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(teams TeamDirectory, remover TeamRemover, billing SubscriptionAdmin, audit AuditLister, counts TableCounter) *AdminHandler {
	return &AdminHandler{teams: teams, remover: remover, billing: billing, audit: audit, counts: counts}
}

func writeAdminError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, team.ErrTeamNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Team not found", requestID)
	case errors.Is(err, team.ErrTeamHasUsers):
		response.Err(w, http.StatusConflict, response.CodeConflict, "Team still has users; pass force=true to delete them", requestID)
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Team has no subscription", requestID)
	case errors.Is(err, tier.ErrTierNotFound):
		checkFields(w, []validation.FieldError{{Field: "tier", Message: "tier does not exist"}}, requestID)
	case errors.Is(err, billing.ErrInvalidAmount):
		checkFields(w, []validation.FieldError{{Field: "amount", Message: err.Error()}}, requestID)
	default:
		internalError(w, requestID, message, err)
	}
}

// ListTeams handles GET /admin/teams.
func (h *AdminHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}

	result, err := h.teams.List(r.Context(), team.ListFilter{
		Name:  queryString(r, "name"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		writeAdminError(w, requestID, "Failed to list teams", err)
		return
	}

	ids := make([]uuid.UUID, 0, len(result.Teams))
	for _, t := range result.Teams {
		ids = append(ids, t.ID)
	}
	subs, err := h.billing.StatusByTeam(r.Context(), ids)
	if err != nil {
		writeAdminError(w, requestID, "Failed to load subscriptions", err)
		return
	}

	items := make([]adminTeamResponse, 0, len(result.Teams))
	for i := range result.Teams {
		t := &result.Teams[i]
		item := adminTeamResponse{teamResponse: toTeamResponse(t)}
		if sub, ok := subs[t.ID]; ok {
			s := toSubscriptionResponse(&sub)
			item.Subscription = &s
		}
		items = append(items, item)
	}
	response.SuccessList(w, http.StatusOK, items, result.Total, result.Page, result.Limit, requestID)
}

// GetTeam handles GET /admin/teams/{id}.
func (h *AdminHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	t, err := h.teams.GetByID(r.Context(), id)
	if err != nil {
		writeAdminError(w, requestID, "Failed to load team", err)
		return
	}

	resp := adminTeamDetailResponse{teamResponse: toTeamResponse(t)}
	sub, balance, _, err := h.billing.Overview(r.Context(), id)
	switch {
	case err == nil:
		s := toSubscriptionResponse(sub)
		b := toBalanceResponse(balance)
		resp.Subscription, resp.Tokens = &s, &b
	case errors.Is(err, billing.ErrSubscriptionNotFound):
	default:
		writeAdminError(w, requestID, "Failed to load subscription", err)
		return
	}
	response.Success(w, http.StatusOK, resp, requestID)
}

// DeleteTeam handles DELETE /admin/teams/{id}?force=true.
func (h *AdminHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	_, actorID := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if err := h.remover.DeleteTeam(r.Context(), *actorID, id, force); err != nil {
		writeAdminError(w, requestID, "Failed to delete team", err)
		return
	}
	response.NoContent(w)
}

// UpdateSubscription handles PATCH /admin/teams/{id}/subscription.
func (h *AdminHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	_, actorID := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updateSubscriptionRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.Struct(req)
	if req.Tier == "" && req.Status == nil {
		fieldErrors = append(fieldErrors, validation.FieldError{Field: "tier", Message: "tier or status is required"})
	}
	if !checkFields(w, fieldErrors, requestID) {
		return
	}

	var sub *billing.Subscription
	var err error
	if req.Tier != "" {
		if sub, err = h.billing.ChangeTier(r.Context(), id, req.Tier, actorID); err != nil {
			writeAdminError(w, requestID, "Failed to change tier", err)
			return
		}
	}
	if req.Status != nil {
		if !slices.Contains(billing.ValidStatuses, *req.Status) {
			checkFields(w, []validation.FieldError{{Field: "status", Message: "status is not a subscription status"}}, requestID)
			return
		}
		if sub, err = h.billing.SetStatus(r.Context(), id, *req.Status, actorID); err != nil {
			writeAdminError(w, requestID, "Failed to set subscription status", err)
			return
		}
	}
	response.Success(w, http.StatusOK, toSubscriptionResponse(sub), requestID)
}

// GrantTokens handles POST /admin/teams/{id}/tokens.
func (h *AdminHandler) GrantTokens(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	_, actorID := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req grantTokensRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	balance, err := h.billing.Grant(r.Context(), id, req.Amount, req.Reason, actorID)
	if err != nil {
		writeAdminError(w, requestID, "Failed to grant tokens", err)
		return
	}
	response.Success(w, http.StatusOK, toBalanceResponse(balance), requestID)
}

// AuditLogs handles GET /admin/audit-logs.
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}
	filter := audit.ListFilter{Action: queryString(r, "action"), Page: page, Limit: limit}
	if v := r.URL.Query().Get("teamId"); v != "" {
		teamID, err := uuid.Parse(v)
		if err != nil {
			response.Err(w, http.StatusBadRequest, response.CodeInvalidQuery, "teamId must be a valid UUID", requestID)
			return
		}
		filter.TeamID = &teamID
	}

	entries, total, err := h.audit.List(r.Context(), filter)
	if err != nil {
		internalError(w, requestID, "Failed to list audit logs", err)
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, auditEntryResponse{
			ID:         e.ID.String(),
			ActorID:    uuidString(e.ActorID),
			TeamID:     uuidString(e.TeamID),
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Details:    e.Details,
			CreatedAt:  response.Time(e.CreatedAt),
		})
	}
	response.SuccessList(w, http.StatusOK, items, total, page, limit, requestID)
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tables, err := h.counts.TableCounts(r.Context())
	if err != nil {
		internalError(w, requestID, "Failed to count tables", err)
		return
	}
	subs, err := h.billing.CountByStatus(r.Context())
	if err != nil {
		internalError(w, requestID, "Failed to count subscriptions", err)
		return
	}
	response.Success(w, http.StatusOK, statsResponse{Tables: tables, Subscriptions: subs}, requestID)
}
