package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/ai"
	"github.com/huddlehq/huddle/internal/aitag"
	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/taggingtier"
)

// Tagger runs an AI tagging pass over a video.
type Tagger interface {
	Tag(ctx context.Context, tierName string, in aitag.Input) (*aitag.Result, error)
}

// PlaybookRefs lists the names of a team's plays.
type PlaybookRefs interface {
	Refs(ctx context.Context, teamID uuid.UUID) ([]playbook.Ref, error)
}

type aiTagRequest struct {
	Tier    string `json:"tier" validate:"required,oneof=quick standard comprehensive"`
	StartMs *int64 `json:"startMs" validate:"omitempty,gte=0"`
	EndMs   *int64 `json:"endMs" validate:"omitempty,gte=0"`
}

type aiTagResponse struct {
	Created    []playInstanceResponse `json:"created"`
	Count      int                    `json:"createdCount"`
	Discarded  int                    `json:"discarded"`
	TokensUsed int                    `json:"tokensUsed"`
	Balance    int                    `json:"balance"`
}

// TaggingHandler serves the tagging tiers and AI-assisted tagging.
type TaggingHandler struct {
	tagger Tagger
	film   FilmService
	refs   PlaybookRefs
	tiers  TierLookup
}

// NewTaggingHandler creates a new TaggingHandler.
func NewTaggingHandler(tagger Tagger, svc FilmService, refs PlaybookRefs, tiers TierLookup) *TaggingHandler {
	return &TaggingHandler{tagger: tagger, film: svc, refs: refs, tiers: tiers}
}

// Tiers handles GET /api/v1/tagging-tiers.
func (h *TaggingHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	response.Success(w, http.StatusOK, taggingtier.All(), requestID)
}

// AITag handles POST /api/v1/videos/{id}/ai-tag.
func (h *TaggingHandler) AITag(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, actorID := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req aiTagRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.Struct(req)
	if req.StartMs != nil && req.EndMs != nil && *req.EndMs <= *req.StartMs {
		fieldErrors = append(fieldErrors, validation.FieldError{Field: "endMs", Message: "endMs must be greater than startMs"})
	}
	if !checkFields(w, fieldErrors, requestID) {
		return
	}

	t, err := h.tiers.Tier(r.Context(), teamID)
	if err != nil {
		internalError(w, requestID, "Failed to tag video", err, "team", teamID)
		return
	}
	if !t.AITagging {
		response.Err(w, http.StatusForbidden, response.CodeForbidden, "Your plan does not include AI tagging", requestID)
		return
	}

	v, err := h.film.Get(r.Context(), teamID, id)
	if err != nil {
		writeFilmError(w, requestID, "Failed to tag video", err)
		return
	}
	mediaURI, err := h.film.PlaybackURL(r.Context(), v)
	if err != nil {
		internalError(w, requestID, "Failed to tag video", err, "video", id)
		return
	}
	refs, err := h.refs.Refs(r.Context(), teamID)
	if err != nil {
		internalError(w, requestID, "Failed to tag video", err, "team", teamID)
		return
	}

	result, err := h.tagger.Tag(r.Context(), req.Tier, aitag.Input{
		Video:    v,
		ActorID:  actorID,
		MediaURI: mediaURI,
		Playbook: refs,
		StartMs:  req.StartMs,
		EndMs:    req.EndMs,
	})
	if err != nil {
		switch {
		case errors.Is(err, taggingtier.ErrUnknownTier):
			checkFields(w, []validation.FieldError{{Field: "tier", Message: err.Error()}}, requestID)
		case errors.Is(err, aitag.ErrVideoNotReady):
			response.Err(w, http.StatusConflict, response.CodeConflict, "The video has not finished uploading", requestID)
		default:
			writeAIError(w, requestID, "Failed to tag video", err)
		}
		return
	}

	response.Success(w, http.StatusCreated, aiTagResponse{
		Created:    toPlayInstanceResponses(result.Created),
		Count:      len(result.Created),
		Discarded:  result.Discarded,
		TokensUsed: result.TokensUsed,
		Balance:    result.Balance,
	}, requestID)
}

// writeAIError maps the errors shared by every AI-backed endpoint.
func writeAIError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		response.Err(w, http.StatusServiceUnavailable, response.CodeFeatureUnavailable, "AI features are not configured", requestID)
	case errors.Is(err, billing.ErrInsufficientTokens):
		response.Err(w, http.StatusPaymentRequired, response.CodeInsufficientTokens, "Not enough AI tokens left this period", requestID)
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		response.Err(w, http.StatusPaymentRequired, response.CodeSubscriptionInactive, "Your team has no subscription", requestID)
	case errors.Is(err, aitag.ErrTaggingFailed), errors.Is(err, ai.ErrEmptyResponse):
		response.Err(w, http.StatusBadGateway, response.CodeUpstream, "The AI service did not return a usable answer; your tokens were refunded", requestID)
	default:
		internalError(w, requestID, message, err)
	}
}
