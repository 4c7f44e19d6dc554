package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/huddlehq/huddle/internal/account"
	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/team"
)

// Signer creates new teams.
type Signer interface {
	Signup(ctx context.Context, in account.SignupInput) (*auth.Session, *team.Team, error)
}

// LoginService verifies credentials.
type LoginService interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"notblank,max=255"`
	TeamName string `json:"teamName" validate:"notblank,max=255"`
	Level    string `json:"level" validate:"required,oneof=youth middle_school high_school other"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	TeamID          *string `json:"teamId"`
	Role            *string `json:"role"`
	IsPlatformAdmin bool    `json:"isPlatformAdmin"`
	CreatedAt       string  `json:"createdAt"`
	DisabledAt      *string `json:"disabledAt"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:              u.ID.String(),
		Email:           u.Email,
		Name:            u.Name,
		TeamID:          uuidString(u.TeamID),
		Role:            u.Role,
		IsPlatformAdmin: u.IsPlatformAdmin,
		CreatedAt:       response.Time(u.CreatedAt),
		DisabledAt:      response.TimePtr(u.DisabledAt),
	}
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt string        `json:"expiresAt"`
	User      userResponse  `json:"user"`
	Team      *teamResponse `json:"team,omitempty"`
}

type meResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	TeamID          *string `json:"teamId"`
	TeamName        *string `json:"teamName"`
	Role            *string `json:"role"`
	IsPlatformAdmin bool    `json:"isPlatformAdmin"`
}

// AuthHandler handles signup, login and the current-user endpoint.
type AuthHandler struct {
	signer Signer
	login  LoginService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(signer Signer, login LoginService) *AuthHandler {
	return &AuthHandler{signer: signer, login: login}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req signupRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	session, t, err := h.signer.Signup(r.Context(), account.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		TeamName: req.TeamName,
		Level:    req.Level,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, response.CodeDuplicateEmail, "An account with this email already exists", requestID)
		case errors.Is(err, team.ErrDuplicateTeamName):
			response.Err(w, http.StatusConflict, response.CodeDuplicateName, "A team with this name already exists", requestID)
		case errors.Is(err, auth.ErrWeakPassword):
			checkFields(w, []validation.FieldError{{Field: "password", Message: err.Error()}}, requestID)
		default:
			internalError(w, requestID, "Failed to sign up", err)
		}
		return
	}

	tr := toTeamResponse(t)
	response.Success(w, http.StatusCreated, sessionResponse{
		Token:     session.Token,
		ExpiresAt: response.Time(session.ExpiresAt),
		User:      toUserResponse(session.User),
		Team:      &tr,
	}, requestID)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	session, err := h.login.Login(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid email or password", requestID)
			return
		}
		internalError(w, requestID, "Failed to log in", err)
		return
	}

	response.Success(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: response.Time(session.ExpiresAt),
		User:      toUserResponse(session.User),
	}, requestID)
}

// Me handles GET /api/v1/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Missing or invalid credentials", requestID)
		return
	}

	response.Success(w, http.StatusOK, meResponse{
		ID:              identity.UserID.String(),
		Email:           identity.Email,
		Name:            identity.Name,
		TeamID:          uuidString(identity.TeamID),
		TeamName:        identity.TeamName,
		Role:            identity.Role,
		IsPlatformAdmin: identity.IsPlatformAdmin,
	}, requestID)
}
