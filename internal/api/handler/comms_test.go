package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/api/handler"
	"github.com/huddlehq/huddle/internal/comms"
)

type mockComms struct {
	contactsFn      func(ctx context.Context, teamID uuid.UUID) ([]comms.Contact, error)
	createContactFn func(ctx context.Context, c *comms.Contact) error
	updateContactFn func(ctx context.Context, teamID, id uuid.UUID, fields comms.ContactUpdate) (*comms.Contact, error)
	deleteContactFn func(ctx context.Context, teamID, id uuid.UUID) error
	messagesFn      func(ctx context.Context, teamID uuid.UUID, filter comms.ListFilter) (*comms.MessageList, error)
	sendFn          func(ctx context.Context, in comms.SendInput) (*comms.Message, error)
}

func (m *mockComms) Contacts(ctx context.Context, teamID uuid.UUID) ([]comms.Contact, error) {
	return m.contactsFn(ctx, teamID)
}

func (m *mockComms) CreateContact(ctx context.Context, c *comms.Contact) error {
	return m.createContactFn(ctx, c)
}

func (m *mockComms) UpdateContact(ctx context.Context, teamID, id uuid.UUID, fields comms.ContactUpdate) (*comms.Contact, error) {
	return m.updateContactFn(ctx, teamID, id, fields)
}

func (m *mockComms) DeleteContact(ctx context.Context, teamID, id uuid.UUID) error {
	return m.deleteContactFn(ctx, teamID, id)
}

func (m *mockComms) Messages(ctx context.Context, teamID uuid.UUID, filter comms.ListFilter) (*comms.MessageList, error) {
	return m.messagesFn(ctx, teamID, filter)
}

func (m *mockComms) Send(ctx context.Context, in comms.SendInput) (*comms.Message, error) {
	return m.sendFn(ctx, in)
}

func sampleContact(id uuid.UUID) *comms.Contact {
	now := time.Now().UTC()
	return &comms.Contact{
		ID: id, TeamID: testTeamID, Name: "Jordan Parent", Email: "jordan@example.com",
		Relationship: comms.RelationshipParent, CreatedAt: now, UpdatedAt: now,
	}
}

// ===== POST /api/v1/contacts =====

func TestContactCreate_DefaultsRelationship(t *testing.T) {
	t.Parallel()

	playerID := uuid.New()
	svc := &mockComms{
		createContactFn: func(_ context.Context, c *comms.Contact) error {
			assert.Equal(t, testTeamID, c.TeamID)
			assert.Equal(t, comms.RelationshipParent, c.Relationship)
			require.NotNil(t, c.PlayerID)
			assert.Equal(t, playerID, *c.PlayerID)
			c.ID = uuid.New()
			return nil
		},
	}
	h := handler.NewCommsHandler(svc)

	body := mustJSON(t, map[string]interface{}{
		"name": "Jordan Parent", "email": "jordan@example.com", "playerId": playerID.String(),
	})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/contacts", body, "/api/v1/contacts", nil)
	h.CreateContact(w, asCoach(req))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, playerID.String(), data["playerId"])
}

func TestContactCreate_InvalidEmail(t *testing.T) {
	t.Parallel()

	h := handler.NewCommsHandler(&mockComms{})

	body := mustJSON(t, map[string]interface{}{"name": "Jordan", "email": "not-an-email"})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/contacts", body, "/api/v1/contacts", nil)
	h.CreateContact(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestContactCreate_UnknownPlayer(t *testing.T) {
	t.Parallel()

	svc := &mockComms{
		createContactFn: func(_ context.Context, _ *comms.Contact) error { return comms.ErrUnknownPlayer },
	}
	h := handler.NewCommsHandler(svc)

	body := mustJSON(t, map[string]interface{}{"name": "Jordan", "email": "j@example.com", "playerId": uuid.New().String()})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/contacts", body, "/api/v1/contacts", nil)
	h.CreateContact(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

// ===== PATCH /api/v1/contacts/{id} =====

func TestContactUpdate_PlayerLinking(t *testing.T) {
	t.Parallel()

	linked := uuid.New()
	tests := []struct {
		name      string
		body      string
		wantClear bool
		wantID    *uuid.UUID
	}{
		{"absent keeps link", `{"name":"New Name"}`, false, nil},
		{"null clears link", `{"playerId":null}`, true, nil},
		{"uuid sets link", `{"playerId":"` + linked.String() + `"}`, false, &linked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id := uuid.New()
			svc := &mockComms{
				updateContactFn: func(_ context.Context, _, _ uuid.UUID, fields comms.ContactUpdate) (*comms.Contact, error) {
					assert.Equal(t, tt.wantClear, fields.ClearPlayer)
					assert.Equal(t, tt.wantID, fields.PlayerID)
					return sampleContact(id), nil
				},
			}
			h := handler.NewCommsHandler(svc)

			req, w := makeChiRequest(http.MethodPatch, "/api/v1/contacts/"+id.String(), []byte(tt.body),
				"/api/v1/contacts/{id}", map[string]string{"id": id.String()})
			h.UpdateContact(w, asCoach(req))

			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestContactUpdate_BadPlayerID(t *testing.T) {
	t.Parallel()

	h := handler.NewCommsHandler(&mockComms{})

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodPatch, "/api/v1/contacts/"+id, []byte(`{"playerId":"nope"}`),
		"/api/v1/contacts/{id}", map[string]string{"id": id})
	h.UpdateContact(w, asCoach(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestContactDelete_NotFound(t *testing.T) {
	t.Parallel()

	svc := &mockComms{
		deleteContactFn: func(_ context.Context, _, _ uuid.UUID) error { return comms.ErrContactNotFound },
	}
	h := handler.NewCommsHandler(svc)

	id := uuid.New().String()
	req, w := makeChiRequest(http.MethodDelete, "/api/v1/contacts/"+id, nil, "/api/v1/contacts/{id}", map[string]string{"id": id})
	h.DeleteContact(w, asCoach(req))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ===== /api/v1/messages =====

func TestMessageSend_Success(t *testing.T) {
	t.Parallel()

	p1 := uuid.New()
	svc := &mockComms{
		sendFn: func(_ context.Context, in comms.SendInput) (*comms.Message, error) {
			assert.Equal(t, testTeamID, in.TeamID)
			require.NotNil(t, in.SentBy)
			assert.Equal(t, testUserID, *in.SentBy)
			assert.Equal(t, []uuid.UUID{p1}, in.PlayerIDs)
			require.NotNil(t, in.ReplyTo)
			assert.Equal(t, "coach@example.com", in.ReplyTo.Address)
			return &comms.Message{
				ID: uuid.New(), TeamID: in.TeamID, Subject: in.Subject, Body: in.Body,
				Audience: in.Audience, PlayerIDs: in.PlayerIDs, RecipientCount: 2, SentBy: in.SentBy, SentAt: time.Now(),
			}, nil
		},
	}
	h := handler.NewCommsHandler(svc)

	body := mustJSON(t, map[string]interface{}{
		"subject": "Practice moved", "body": "Practice starts at 5pm.",
		"audience": "players", "playerIds": []string{p1.String()},
	})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/messages", body, "/api/v1/messages", nil)
	h.SendMessage(w, asCoach(req))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["recipientCount"])
	assert.Equal(t, []interface{}{p1.String()}, data["playerIds"])
}

func TestMessageSend_RecipientErrors(t *testing.T) {
	t.Parallel()

	for _, sendErr := range []error{comms.ErrNoRecipients, comms.ErrNoPlayersSelected} {
		svc := &mockComms{
			sendFn: func(_ context.Context, _ comms.SendInput) (*comms.Message, error) { return nil, sendErr },
		}
		h := handler.NewCommsHandler(svc)

		body := mustJSON(t, map[string]interface{}{"subject": "Hi", "body": "Hello"})
		req, w := makeChiRequest(http.MethodPost, "/api/v1/messages", body, "/api/v1/messages", nil)
		h.SendMessage(w, asCoach(req))

		assert.Equal(t, http.StatusBadRequest, w.Code, sendErr.Error())
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	}
}

func TestMessageSend_ProviderDown(t *testing.T) {
	t.Parallel()

	svc := &mockComms{
		sendFn: func(_ context.Context, _ comms.SendInput) (*comms.Message, error) {
			return nil, fmt.Errorf("%w: 503 from provider", comms.ErrDeliveryFailed)
		},
	}
	h := handler.NewCommsHandler(svc)

	body := mustJSON(t, map[string]interface{}{"subject": "Hi", "body": "Hello"})
	req, w := makeChiRequest(http.MethodPost, "/api/v1/messages", body, "/api/v1/messages", nil)
	h.SendMessage(w, asCoach(req))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPSTREAM_ERROR", errorCode(t, w))
}

func TestMessageList_Paginated(t *testing.T) {
	t.Parallel()

	svc := &mockComms{
		messagesFn: func(_ context.Context, _ uuid.UUID, filter comms.ListFilter) (*comms.MessageList, error) {
			assert.Equal(t, 3, filter.Page)
			return &comms.MessageList{
				Messages: []comms.Message{{ID: uuid.New(), Subject: "Hi", Audience: comms.AudienceAll, SentAt: time.Now()}},
				Total:    41, Page: filter.Page, Limit: filter.Limit,
			}, nil
		},
	}
	h := handler.NewCommsHandler(svc)

	req, w := makeChiRequest(http.MethodGet, "/api/v1/messages?page=3", nil, "/api/v1/messages", nil)
	h.ListMessages(w, asCoach(req))

	assert.Equal(t, http.StatusOK, w.Code)
	env := parseEnvelope(t, w)
	meta := env["meta"].(map[string]interface{})
	assert.Equal(t, float64(41), meta["total"])
	msg := env["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{}, msg["playerIds"])
}
