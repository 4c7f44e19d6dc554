package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a size-limited JSON body into dst. On failure it writes
// INVALID_JSON and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidJSON, "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

// checkFields writes VALIDATION_ERROR when errs is non-empty.
func checkFields(w http.ResponseWriter, errs []validation.FieldError, requestID string) bool {
	if len(errs) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", errs, requestID)
		return false
	}
	return true
}

// urlID parses the named chi URL parameter as a UUID.
func urlID(w http.ResponseWriter, r *http.Request, param, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidID, param+" must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads page and limit query parameters, defaulting to 1 and 20.
func pageParams(w http.ResponseWriter, r *http.Request, requestID string) (page, limit int, ok bool) {
	page, limit = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Err(w, http.StatusBadRequest, response.CodeInvalidQuery, "page must be a positive integer", requestID)
			return 0, 0, false
		}
		page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Err(w, http.StatusBadRequest, response.CodeInvalidQuery, "limit must be a positive integer", requestID)
			return 0, 0, false
		}
		limit = n
	}
	return page, limit, true
}

// queryInt parses an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name, requestID string) (*int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidQuery, name+" must be an integer", requestID)
		return nil, false
	}
	return &n, true
}

// queryString returns a pointer to a non-empty query parameter.
func queryString(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}

// scope returns the caller's team and user ids. Team routes are mounted behind
// RequireRole, so the identity always carries a team.
func scope(r *http.Request) (teamID uuid.UUID, actorID *uuid.UUID) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		return uuid.Nil, nil
	}
	userID := identity.UserID
	if identity.TeamID != nil {
		teamID = *identity.TeamID
	}
	return teamID, &userID
}

// internalError logs err and writes a generic 500.
func internalError(w http.ResponseWriter, requestID, message string, err error, attrs ...any) {
	slog.Error(message, append([]any{"error", err, "requestId", requestID}, attrs...)...)
	response.Err(w, http.StatusInternalServerError, response.CodeInternal, message, requestID)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
