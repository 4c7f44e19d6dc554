package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/tier"
)

// createTierRequest is the request body for POST /admin/tiers.
type createTierRequest struct {
	Name             string `json:"name" validate:"required,min=2,max=40,alphanum,lowercase"`
	DisplayName      string `json:"displayName" validate:"notblank,max=80"`
	PriceCents       int    `json:"priceCents" validate:"gte=0"`
	MonthlyTokens    int    `json:"monthlyTokens" validate:"gte=0"`
	MaxStaff         int    `json:"maxStaff" validate:"gte=0"`
	MaxVideosPerGame int    `json:"maxVideosPerGame" validate:"gte=0"`
	MaxUploadBytes   int64  `json:"maxUploadBytes" validate:"gte=0"`
	StripePriceID    string `json:"stripePriceId" validate:"max=255"`
	AITagging        bool   `json:"aiTagging"`
	Active           *bool  `json:"active"`
}

// updateTierRequest is the request body for PATCH /admin/tiers/{id}.
type updateTierRequest struct {
	DisplayName      *string `json:"displayName" validate:"omitempty,notblank,max=80"`
	PriceCents       *int    `json:"priceCents" validate:"omitempty,gte=0"`
	MonthlyTokens    *int    `json:"monthlyTokens" validate:"omitempty,gte=0"`
	MaxStaff         *int    `json:"maxStaff" validate:"omitempty,gte=0"`
	MaxVideosPerGame *int    `json:"maxVideosPerGame" validate:"omitempty,gte=0"`
	MaxUploadBytes   *int64  `json:"maxUploadBytes" validate:"omitempty,gte=0"`
	StripePriceID    *string `json:"stripePriceId" validate:"omitempty,max=255"`
	AITagging        *bool   `json:"aiTagging"`
	Active           *bool   `json:"active"`
}

// tierResponse is the full representation served to platform admins.
type tierResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	PriceCents       int    `json:"priceCents"`
	MonthlyTokens    int    `json:"monthlyTokens"`
	MaxStaff         int    `json:"maxStaff"`
	MaxVideosPerGame int    `json:"maxVideosPerGame"`
	MaxUploadBytes   int64  `json:"maxUploadBytes"`
	StripePriceID    string `json:"stripePriceId"`
	AITagging        bool   `json:"aiTagging"`
	Active           bool   `json:"active"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

// tierSummaryResponse is the public representation on the pricing page.
type tierSummaryResponse struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	PriceCents       int    `json:"priceCents"`
	MonthlyTokens    int    `json:"monthlyTokens"`
	MaxStaff         int    `json:"maxStaff"`
	MaxVideosPerGame int    `json:"maxVideosPerGame"`
	MaxUploadBytes   int64  `json:"maxUploadBytes"`
	AITagging        bool   `json:"aiTagging"`
	Purchasable      bool   `json:"purchasable"`
}

func toTierResponse(t *tier.Tier) tierResponse {
	return tierResponse{
		ID:               t.ID.String(),
		Name:             t.Name,
		DisplayName:      t.DisplayName,
		PriceCents:       t.PriceCents,
		MonthlyTokens:    t.MonthlyTokens,
		MaxStaff:         t.MaxStaff,
		MaxVideosPerGame: t.MaxVideosPerGame,
		MaxUploadBytes:   t.MaxUploadBytes,
		StripePriceID:    t.StripePriceID,
		AITagging:        t.AITagging,
		Active:           t.Active,
		CreatedAt:        response.Time(t.CreatedAt),
		UpdatedAt:        response.Time(t.UpdatedAt),
	}
}

func toTierSummaryResponse(t *tier.Tier) tierSummaryResponse {
	return tierSummaryResponse{
		Name:             t.Name,
		DisplayName:      t.DisplayName,
		PriceCents:       t.PriceCents,
		MonthlyTokens:    t.MonthlyTokens,
		MaxStaff:         t.MaxStaff,
		MaxVideosPerGame: t.MaxVideosPerGame,
		MaxUploadBytes:   t.MaxUploadBytes,
		AITagging:        t.AITagging,
		Purchasable:      t.StripePriceID != "",
	}
}

// TierHandler handles tier endpoints.
type TierHandler struct {
	repo  tier.Repository
	audit audit.Recorder
}

// NewTierHandler creates a new TierHandler.
func NewTierHandler(repo tier.Repository, recorder audit.Recorder) *TierHandler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &TierHandler{repo: repo, audit: recorder}
}

func writeTierError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, tier.ErrTierNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Tier not found", requestID)
	case errors.Is(err, tier.ErrDuplicateTierName):
		response.Err(w, http.StatusConflict, response.CodeDuplicateName, "A tier with this name already exists", requestID)
	case errors.Is(err, tier.ErrTierHasSubscriptions):
		response.Err(w, http.StatusConflict, response.CodeConflict, "Teams are still subscribed to this tier", requestID)
	default:
		internalError(w, requestID, message, err)
	}
}

// Public handles GET /api/v1/tiers.
func (h *TierHandler) Public(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tiers, err := h.repo.List(r.Context(), true)
	if err != nil {
		internalError(w, requestID, "Failed to list tiers", err)
		return
	}

	items := make([]tierSummaryResponse, 0, len(tiers))
	for i := range tiers {
		items = append(items, toTierSummaryResponse(&tiers[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// List handles GET /admin/tiers.
func (h *TierHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tiers, err := h.repo.List(r.Context(), false)
	if err != nil {
		internalError(w, requestID, "Failed to list tiers", err)
		return
	}

	items := make([]tierResponse, 0, len(tiers))
	for i := range tiers {
		items = append(items, toTierResponse(&tiers[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Create handles POST /admin/tiers.
func (h *TierHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	_, actorID := scope(r)

	var req createTierRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	t := &tier.Tier{
		Name:             req.Name,
		DisplayName:      req.DisplayName,
		PriceCents:       req.PriceCents,
		MonthlyTokens:    req.MonthlyTokens,
		MaxStaff:         req.MaxStaff,
		MaxVideosPerGame: req.MaxVideosPerGame,
		MaxUploadBytes:   req.MaxUploadBytes,
		StripePriceID:    req.StripePriceID,
		AITagging:        req.AITagging,
		Active:           req.Active == nil || *req.Active,
	}
	if err := h.repo.Create(r.Context(), t); err != nil {
		if errors.Is(err, tier.ErrDuplicateTierName) {
			response.Err(w, http.StatusConflict, response.CodeDuplicateName, fmt.Sprintf("A tier named %q already exists", req.Name), requestID)
			return
		}
		writeTierError(w, requestID, "Failed to create tier", err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		ActorID: actorID, Action: audit.ActionTierCreate,
		TargetType: "tier", TargetID: t.ID.String(),
		Details: map[string]any{"name": t.Name},
	})
	response.Success(w, http.StatusCreated, toTierResponse(t), requestID)
}

// Update handles PATCH /admin/tiers/{id}.
func (h *TierHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	_, actorID := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updateTierRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	t, err := h.repo.Update(r.Context(), id, tier.UpdateFields{
		DisplayName:      req.DisplayName,
		PriceCents:       req.PriceCents,
		MonthlyTokens:    req.MonthlyTokens,
		MaxStaff:         req.MaxStaff,
		MaxVideosPerGame: req.MaxVideosPerGame,
		MaxUploadBytes:   req.MaxUploadBytes,
		StripePriceID:    req.StripePriceID,
		AITagging:        req.AITagging,
		Active:           req.Active,
	})
	if err != nil {
		writeTierError(w, requestID, "Failed to update tier", err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		ActorID: actorID, Action: audit.ActionTierUpdate,
		TargetType: "tier", TargetID: t.ID.String(),
		Details: map[string]any{"name": t.Name},
	})
	response.Success(w, http.StatusOK, toTierResponse(t), requestID)
}

// Delete handles DELETE /admin/tiers/{id}.
func (h *TierHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	_, actorID := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeTierError(w, requestID, "Failed to delete tier", err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		ActorID: actorID, Action: audit.ActionTierDelete,
		TargetType: "tier", TargetID: id.String(),
	})
	response.NoContent(w)
}
