package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/comms"
)

// CommsService is the subset of comms.Service used by CommsHandler.
type CommsService interface {
	Contacts(ctx context.Context, teamID uuid.UUID) ([]comms.Contact, error)
	CreateContact(ctx context.Context, c *comms.Contact) error
	UpdateContact(ctx context.Context, teamID, id uuid.UUID, fields comms.ContactUpdate) (*comms.Contact, error)
	DeleteContact(ctx context.Context, teamID, id uuid.UUID) error
	Messages(ctx context.Context, teamID uuid.UUID, filter comms.ListFilter) (*comms.MessageList, error)
	Send(ctx context.Context, in comms.SendInput) (*comms.Message, error)
}

type createContactRequest struct {
	PlayerID     *string `json:"playerId" validate:"omitempty,uuid"`
	Name         string  `json:"name" validate:"notblank,max=255"`
	Email        string  `json:"email" validate:"required,email,max=255"`
	Phone        string  `json:"phone" validate:"max=40"`
	Relationship string  `json:"relationship" validate:"omitempty,oneof=parent guardian other"`
	OptedOut     bool    `json:"optedOut"`
}

// updateContactRequest keeps playerId raw so an explicit null can unlink the player.
type updateContactRequest struct {
	PlayerID     json.RawMessage `json:"playerId"`
	Name         *string         `json:"name" validate:"omitempty,notblank,max=255"`
	Email        *string         `json:"email" validate:"omitempty,email,max=255"`
	Phone        *string         `json:"phone" validate:"omitempty,max=40"`
	Relationship *string         `json:"relationship" validate:"omitempty,oneof=parent guardian other"`
	OptedOut     *bool           `json:"optedOut"`
}

type sendMessageRequest struct {
	Subject   string   `json:"subject" validate:"notblank,max=200"`
	Body      string   `json:"body" validate:"notblank,max=20000"`
	Audience  string   `json:"audience" validate:"omitempty,oneof=all players"`
	PlayerIDs []string `json:"playerIds" validate:"omitempty,dive,uuid"`
}

type contactResponse struct {
	ID           string  `json:"id"`
	PlayerID     *string `json:"playerId"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	Relationship string  `json:"relationship"`
	OptedOut     bool    `json:"optedOut"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

type messageResponse struct {
	ID             string   `json:"id"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Audience       string   `json:"audience"`
	PlayerIDs      []string `json:"playerIds"`
	RecipientCount int      `json:"recipientCount"`
	SentBy         *string  `json:"sentBy"`
	SentAt         string   `json:"sentAt"`
}

func toContactResponse(c *comms.Contact) contactResponse {
	return contactResponse{
		ID:           c.ID.String(),
		PlayerID:     uuidString(c.PlayerID),
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Relationship: c.Relationship,
		OptedOut:     c.OptedOut,
		CreatedAt:    response.Time(c.CreatedAt),
		UpdatedAt:    response.Time(c.UpdatedAt),
	}
}

func toMessageResponse(m *comms.Message) messageResponse {
	return messageResponse{
		ID:             m.ID.String(),
		Subject:        m.Subject,
		Body:           m.Body,
		Audience:       m.Audience,
		PlayerIDs:      uuidStrings(m.PlayerIDs),
		RecipientCount: m.RecipientCount,
		SentBy:         uuidString(m.SentBy),
		SentAt:         response.Time(m.SentAt),
	}
}

// CommsHandler handles contacts and team messages.
type CommsHandler struct {
	svc CommsService
}

// NewCommsHandler creates a new CommsHandler.
func NewCommsHandler(svc CommsService) *CommsHandler {
	return &CommsHandler{svc: svc}
}

func writeCommsError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, comms.ErrContactNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Contact not found", requestID)
	case errors.Is(err, comms.ErrUnknownPlayer):
		checkFields(w, []validation.FieldError{{Field: "playerId", Message: "playerId does not match a player on this team"}}, requestID)
	case errors.Is(err, comms.ErrNoPlayersSelected):
		checkFields(w, []validation.FieldError{{Field: "playerIds", Message: "playerIds is required when audience is players"}}, requestID)
	case errors.Is(err, comms.ErrNoRecipients):
		checkFields(w, []validation.FieldError{{Field: "audience", Message: "no contacts will receive this message"}}, requestID)
	case errors.Is(err, comms.ErrDeliveryFailed):
		slog.Error("message delivery failed", "requestId", requestID, "error", err)
		response.Err(w, http.StatusBadGateway, response.CodeUpstream, "The mail provider did not accept the message", requestID)
	default:
		internalError(w, requestID, message, err)
	}
}

// ListContacts handles GET /api/v1/contacts.
func (h *CommsHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	contacts, err := h.svc.Contacts(r.Context(), teamID)
	if err != nil {
		writeCommsError(w, requestID, "Failed to list contacts", err)
		return
	}

	items := make([]contactResponse, 0, len(contacts))
	for i := range contacts {
		items = append(items, toContactResponse(&contacts[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// CreateContact handles POST /api/v1/contacts.
func (h *CommsHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	var req createContactRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	c := &comms.Contact{
		TeamID:       teamID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Relationship: req.Relationship,
		OptedOut:     req.OptedOut,
	}
	if c.Relationship == "" {
		c.Relationship = comms.RelationshipParent
	}
	if req.PlayerID != nil {
		id := uuid.MustParse(*req.PlayerID)
		c.PlayerID = &id
	}

	if err := h.svc.CreateContact(r.Context(), c); err != nil {
		writeCommsError(w, requestID, "Failed to create contact", err)
		return
	}
	response.Success(w, http.StatusCreated, toContactResponse(c), requestID)
}

// UpdateContact handles PATCH /api/v1/contacts/{id}.
func (h *CommsHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	var req updateContactRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	fields := comms.ContactUpdate{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Relationship: req.Relationship,
		OptedOut:     req.OptedOut,
	}
	if len(req.PlayerID) > 0 {
		var raw *string
		if err := json.Unmarshal(req.PlayerID, &raw); err != nil {
			checkFields(w, []validation.FieldError{{Field: "playerId", Message: "playerId must be a UUID or null"}}, requestID)
			return
		}
		if raw == nil {
			fields.ClearPlayer = true
		} else {
			pid, err := uuid.Parse(*raw)
			if err != nil {
				checkFields(w, []validation.FieldError{{Field: "playerId", Message: "playerId must be a UUID or null"}}, requestID)
				return
			}
			fields.PlayerID = &pid
		}
	}

	c, err := h.svc.UpdateContact(r.Context(), teamID, id, fields)
	if err != nil {
		writeCommsError(w, requestID, "Failed to update contact", err)
		return
	}
	response.Success(w, http.StatusOK, toContactResponse(c), requestID)
}

// DeleteContact handles DELETE /api/v1/contacts/{id}.
func (h *CommsHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	id, ok := urlID(w, r, "id", requestID)
	if !ok {
		return
	}
	if err := h.svc.DeleteContact(r.Context(), teamID, id); err != nil {
		writeCommsError(w, requestID, "Failed to delete contact", err)
		return
	}
	response.NoContent(w)
}

// ListMessages handles GET /api/v1/messages.
func (h *CommsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}

	list, err := h.svc.Messages(r.Context(), teamID, comms.ListFilter{Page: page, Limit: limit})
	if err != nil {
		writeCommsError(w, requestID, "Failed to list messages", err)
		return
	}

	items := make([]messageResponse, 0, len(list.Messages))
	for i := range list.Messages {
		items = append(items, toMessageResponse(&list.Messages[i]))
	}
	response.SuccessList(w, http.StatusOK, items, list.Total, list.Page, list.Limit, requestID)
}

// SendMessage handles POST /api/v1/messages. Replies go to the sender.
func (h *CommsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, actorID := scope(r)

	var req sendMessageRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	in := comms.SendInput{
		TeamID:   teamID,
		SentBy:   actorID,
		Subject:  req.Subject,
		Body:     req.Body,
		Audience: req.Audience,
	}
	for _, s := range req.PlayerIDs {
		in.PlayerIDs = append(in.PlayerIDs, uuid.MustParse(s))
	}
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		in.ReplyTo = &comms.Recipient{Name: identity.Name, Address: identity.Email}
	}

	msg, err := h.svc.Send(r.Context(), in)
	if err != nil {
		writeCommsError(w, requestID, "Failed to send message", err)
		return
	}
	response.Success(w, http.StatusCreated, toMessageResponse(msg), requestID)
}
