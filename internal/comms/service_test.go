package comms

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/player"
)

type memRepo struct {
	contacts []Contact
	messages []Message
}

func (m *memRepo) CreateContact(_ context.Context, c *Contact) error {
	c.ID = uuid.New()
	m.contacts = append(m.contacts, *c)
	return nil
}

func (m *memRepo) GetContact(_ context.Context, teamID, id uuid.UUID) (*Contact, error) {
	for i := range m.contacts {
		if m.contacts[i].ID == id && m.contacts[i].TeamID == teamID {
			c := m.contacts[i]
			return &c, nil
		}
	}
	return nil, ErrContactNotFound
}

func (m *memRepo) ListContacts(_ context.Context, teamID uuid.UUID) ([]Contact, error) {
	out := []Contact{}
	for _, c := range m.contacts {
		if c.TeamID == teamID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateContact(ctx context.Context, teamID, id uuid.UUID, fields ContactUpdate) (*Contact, error) {
	for i := range m.contacts {
		c := &m.contacts[i]
		if c.ID != id || c.TeamID != teamID {
			continue
		}
		if fields.ClearPlayer {
			c.PlayerID = nil
		} else if fields.PlayerID != nil {
			c.PlayerID = fields.PlayerID
		}
		if fields.Email != nil {
			c.Email = *fields.Email
		}
		if fields.OptedOut != nil {
			c.OptedOut = *fields.OptedOut
		}
		return m.GetContact(ctx, teamID, id)
	}
	return nil, ErrContactNotFound
}

func (m *memRepo) DeleteContact(_ context.Context, teamID, id uuid.UUID) error {
	for i, c := range m.contacts {
		if c.ID == id && c.TeamID == teamID {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			return nil
		}
	}
	return ErrContactNotFound
}

func (m *memRepo) Recipients(_ context.Context, teamID uuid.UUID, playerIDs []uuid.UUID) ([]Contact, error) {
	out := []Contact{}
	for _, c := range m.contacts {
		if c.TeamID != teamID || c.OptedOut {
			continue
		}
		if playerIDs != nil && (c.PlayerID == nil || !containsID(playerIDs, *c.PlayerID)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memRepo) CreateMessage(_ context.Context, msg *Message) error {
	msg.ID = uuid.New()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memRepo) ListMessages(_ context.Context, teamID uuid.UUID, filter ListFilter) (*MessageList, error) {
	out := []Message{}
	for _, msg := range m.messages {
		if msg.TeamID == teamID {
			out = append(out, msg)
		}
	}
	return &MessageList{Messages: out, Total: len(out), Page: 1, Limit: 20}, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type playerStub struct {
	known map[uuid.UUID]uuid.UUID
}

func (p playerStub) GetByID(_ context.Context, teamID, id uuid.UUID) (*player.Player, error) {
	if p.known[id] != teamID {
		return nil, player.ErrPlayerNotFound
	}
	return &player.Player{ID: id, TeamID: teamID}, nil
}

type captureMailer struct {
	sent []Email
	err  error
}

func (c *captureMailer) Send(_ context.Context, e Email) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, e)
	return nil
}

type fixture struct {
	svc     *Service
	repo    *memRepo
	mailer  *captureMailer
	teamID  uuid.UUID
	player1 uuid.UUID
	player2 uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    &memRepo{},
		mailer:  &captureMailer{},
		teamID:  uuid.New(),
		player1: uuid.New(),
		player2: uuid.New(),
	}
	players := playerStub{known: map[uuid.UUID]uuid.UUID{f.player1: f.teamID, f.player2: f.teamID}}
	f.svc = NewService(f.repo, players, f.mailer)
	return f
}

func (f *fixture) addContact(t *testing.T, name, email string, playerID *uuid.UUID, optedOut bool) {
	t.Helper()
	require.NoError(t, f.svc.CreateContact(context.Background(), &Contact{
		TeamID: f.teamID, PlayerID: playerID, Name: name, Email: email, OptedOut: optedOut,
	}))
}

func TestCreateContact_UnknownPlayer(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	err := f.svc.CreateContact(context.Background(), &Contact{TeamID: f.teamID, PlayerID: &other, Name: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestCreateContact_TrimsEmail(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Pat", "  pat@example.com ", &f.player1, false)
	contacts, err := f.svc.Contacts(context.Background(), f.teamID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "pat@example.com", contacts[0].Email)
}

func TestUpdateContact_ChecksPlayer(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Pat", "pat@example.com", nil, false)
	id := f.repo.contacts[0].ID

	stranger := uuid.New()
	_, err := f.svc.UpdateContact(context.Background(), f.teamID, id, ContactUpdate{PlayerID: &stranger})
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	updated, err := f.svc.UpdateContact(context.Background(), f.teamID, id, ContactUpdate{PlayerID: &f.player2})
	require.NoError(t, err)
	assert.Equal(t, f.player2, *updated.PlayerID)
}

func TestSend_AllAudienceDedupesAndSkipsOptedOut(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Pat", "pat@example.com", &f.player1, false)
	f.addContact(t, "Pat Again", "PAT@example.com", &f.player2, false)
	f.addContact(t, "Sam", "sam@example.com", &f.player2, false)
	f.addContact(t, "Quiet", "quiet@example.com", &f.player1, true)

	msg, err := f.svc.Send(context.Background(), SendInput{
		TeamID: f.teamID, Subject: "Practice moved", Body: "Now at 4pm", Audience: AudienceAll,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, msg.RecipientCount)
	assert.Equal(t, AudienceAll, msg.Audience)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []Recipient{
		{Name: "Pat", Address: "pat@example.com"},
		{Name: "Sam", Address: "sam@example.com"},
	}, f.mailer.sent[0].To)
	require.Len(t, f.repo.messages, 1)
}

func TestSend_PlayersAudience(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Pat", "pat@example.com", &f.player1, false)
	f.addContact(t, "Sam", "sam@example.com", &f.player2, false)

	msg, err := f.svc.Send(context.Background(), SendInput{
		TeamID: f.teamID, Subject: "Forms", Body: "Bring the form", Audience: AudiencePlayers,
		PlayerIDs: []uuid.UUID{f.player2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, msg.RecipientCount)
	assert.Equal(t, []uuid.UUID{f.player2}, msg.PlayerIDs)
	assert.Equal(t, "sam@example.com", f.mailer.sent[0].To[0].Address)
}

func TestSend_PlayersAudienceRequiresPlayers(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Send(context.Background(), SendInput{TeamID: f.teamID, Subject: "s", Body: "b", Audience: AudiencePlayers})
	assert.ErrorIs(t, err, ErrNoPlayersSelected)
}

func TestSend_NoRecipients(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Quiet", "quiet@example.com", nil, true)

	_, err := f.svc.Send(context.Background(), SendInput{TeamID: f.teamID, Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.repo.messages)
}

func TestSend_MailerFailureDoesNotStore(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Pat", "pat@example.com", nil, false)
	f.mailer.err = errors.New("provider down")

	_, err := f.svc.Send(context.Background(), SendInput{TeamID: f.teamID, Subject: "s", Body: "b"})
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "provider down")
	assert.Empty(t, f.repo.messages)
}

func TestSend_PartialDeliveryStoresDeliveredCount(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Pat", "pat@example.com", nil, false)
	f.addContact(t, "Sam", "sam@example.com", nil, false)
	f.mailer.err = &PartialDeliveryError{Delivered: 1, Err: errors.New("sendgrid responded 500")}

	_, err := f.svc.Send(context.Background(), SendInput{TeamID: f.teamID, Subject: "s", Body: "b"})
	require.ErrorIs(t, err, ErrDeliveryFailed)

	require.Len(t, f.repo.messages, 1)
	assert.Equal(t, 1, f.repo.messages[0].RecipientCount)
}

func TestPartialDeliveryError(t *testing.T) {
	cause := errors.New("sendgrid responded 500")
	err := error(&PartialDeliveryError{Delivered: 1000, Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "delivered to 1000 recipients before failing: sendgrid responded 500", err.Error())
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]Contact{
		{Name: "A", Email: " a@x.com"},
		{Name: "Blank", Email: "  "},
		{Name: "A2", Email: "A@X.COM"},
		{Name: "B", Email: "b@x.com", OptedOut: true},
	})
	assert.Equal(t, []Recipient{{Name: "A", Address: "a@x.com"}}, got)
}

func TestNewService_DefaultsToLogMailer(t *testing.T) {
	svc := NewService(&memRepo{}, playerStub{}, nil)
	_, ok := svc.mailer.(LogMailer)
	assert.True(t, ok)
}
