package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/account"
	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/auth"
)

// StaffService manages coaching staff accounts.
type StaffService interface {
	Staff(ctx context.Context, teamID uuid.UUID) ([]auth.User, error)
	CreateStaff(ctx context.Context, actor *auth.Identity, in account.StaffInput) (*auth.User, error)
	RemoveStaff(ctx context.Context, actor *auth.Identity, userID uuid.UUID) error
}

type createStaffRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"notblank,max=255"`
	Role     string `json:"role" validate:"required,oneof=head_coach coach viewer"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// StaffHandler handles the team's staff accounts.
type StaffHandler struct {
	svc StaffService
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(svc StaffService) *StaffHandler {
	return &StaffHandler{svc: svc}
}

// List handles GET /api/v1/staff.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	users, err := h.svc.Staff(r.Context(), teamID)
	if err != nil {
		internalError(w, requestID, "Failed to list staff", err, "team", teamID)
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Create handles POST /api/v1/staff.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createStaffRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	u, err := h.svc.CreateStaff(r.Context(), middleware.GetIdentity(r.Context()), account.StaffInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, response.CodeDuplicateEmail, "An account with this email already exists", requestID)
		case errors.Is(err, account.ErrStaffLimitReached):
			response.Err(w, http.StatusConflict, response.CodeLimitReached, "Your plan does not allow more staff accounts", requestID)
		case errors.Is(err, account.ErrInvalidRole):
			checkFields(w, []validation.FieldError{{Field: "role", Message: "role is invalid"}}, requestID)
		default:
			internalError(w, requestID, "Failed to create staff account", err)
		}
		return
	}

	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// Delete handles DELETE /api/v1/staff/{id}.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}

	if err := h.svc.RemoveStaff(r.Context(), middleware.GetIdentity(r.Context()), id); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			response.Err(w, http.StatusNotFound, response.CodeNotFound, "Staff member not found", requestID)
		case errors.Is(err, account.ErrCannotRemoveSelf):
			response.Err(w, http.StatusConflict, response.CodeConflict, "You cannot remove your own account", requestID)
		default:
			internalError(w, requestID, "Failed to remove staff member", err, "user", id)
		}
		return
	}

	response.NoContent(w)
}
