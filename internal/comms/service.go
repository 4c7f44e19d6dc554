package comms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/player"
)

// ErrNoRecipients is returned when a message resolves to nobody.
var ErrNoRecipients = errors.New("no recipients for message")

// ErrNoPlayersSelected is returned for a players-audience message without player ids.
var ErrNoPlayersSelected = errors.New("no players selected")

// ErrDeliveryFailed is returned when the mail provider rejects a message.
var ErrDeliveryFailed = errors.New("message delivery failed")

// PlayerLookup resolves team-scoped players.
type PlayerLookup interface {
	GetByID(ctx context.Context, teamID, id uuid.UUID) (*player.Player, error)
}

// SendInput describes an outgoing message.
type SendInput struct {
	TeamID    uuid.UUID
	SentBy    *uuid.UUID
	Subject   string
	Body      string
	Audience  string
	PlayerIDs []uuid.UUID
	ReplyTo   *Recipient
}

// Service manages contacts and sends team messages.
type Service struct {
	repo    Repository
	players PlayerLookup
	mailer  Mailer
}

// NewService creates a Service. A nil mailer falls back to LogMailer.
func NewService(repo Repository, players PlayerLookup, mailer Mailer) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{repo: repo, players: players, mailer: mailer}
}

// Contacts lists the team's contacts.
func (s *Service) Contacts(ctx context.Context, teamID uuid.UUID) ([]Contact, error) {
	return s.repo.ListContacts(ctx, teamID)
}

// CreateContact stores c after checking that its player belongs to the team.
func (s *Service) CreateContact(ctx context.Context, c *Contact) error {
	if c.PlayerID != nil {
		if err := s.checkPlayer(ctx, c.TeamID, *c.PlayerID); err != nil {
			return err
		}
	}
	c.Email = strings.TrimSpace(c.Email)
	return s.repo.CreateContact(ctx, c)
}

// UpdateContact applies fields to a contact.
func (s *Service) UpdateContact(ctx context.Context, teamID, id uuid.UUID, fields ContactUpdate) (*Contact, error) {
	if fields.PlayerID != nil && !fields.ClearPlayer {
		if err := s.checkPlayer(ctx, teamID, *fields.PlayerID); err != nil {
			return nil, err
		}
	}
	if fields.Email != nil {
		trimmed := strings.TrimSpace(*fields.Email)
		fields.Email = &trimmed
	}
	return s.repo.UpdateContact(ctx, teamID, id, fields)
}

// DeleteContact removes a contact.
func (s *Service) DeleteContact(ctx context.Context, teamID, id uuid.UUID) error {
	return s.repo.DeleteContact(ctx, teamID, id)
}

// Messages lists sent messages.
func (s *Service) Messages(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*MessageList, error) {
	return s.repo.ListMessages(ctx, teamID, filter)
}

func (s *Service) checkPlayer(ctx context.Context, teamID, playerID uuid.UUID) error {
	if _, err := s.players.GetByID(ctx, teamID, playerID); err != nil {
		if errors.Is(err, player.ErrPlayerNotFound) {
			return ErrUnknownPlayer
		}
		return err
	}
	return nil
}

// Send resolves recipients, mails them and stores the message.
func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	var playerIDs []uuid.UUID
	switch in.Audience {
	case AudiencePlayers:
		if len(in.PlayerIDs) == 0 {
			return nil, ErrNoPlayersSelected
		}
		playerIDs = in.PlayerIDs
	default:
		in.Audience = AudienceAll
	}

	contacts, err := s.repo.Recipients(ctx, in.TeamID, playerIDs)
	if err != nil {
		return nil, err
	}
	to := Dedupe(contacts)
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	msg := &Message{
		TeamID:         in.TeamID,
		Subject:        in.Subject,
		Body:           in.Body,
		Audience:       in.Audience,
		PlayerIDs:      playerIDs,
		RecipientCount: len(to),
		SentBy:         in.SentBy,
	}

	email := Email{Subject: in.Subject, Body: in.Body, ReplyTo: in.ReplyTo, To: to}
	if err := s.mailer.Send(ctx, email); err != nil {
		// Recipients already mailed keep a record of what they received.
		var partial *PartialDeliveryError
		if errors.As(err, &partial) && partial.Delivered > 0 {
			slog.Warn("comms: message partially delivered",
				"team", in.TeamID, "delivered", partial.Delivered, "recipients", len(to), "error", partial.Err)
			msg.RecipientCount = partial.Delivered
			if cerr := s.repo.CreateMessage(context.WithoutCancel(ctx), msg); cerr != nil {
				slog.Error("comms: failed to store partially delivered message", "team", in.TeamID, "error", cerr)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Dedupe returns one recipient per email address, compared case-insensitively,
// skipping opted-out contacts and keeping first-seen order.
func Dedupe(contacts []Contact) []Recipient {
	seen := make(map[string]struct{}, len(contacts))
	out := make([]Recipient, 0, len(contacts))
	for _, c := range contacts {
		if c.OptedOut {
			continue
		}
		addr := strings.TrimSpace(c.Email)
		key := strings.ToLower(addr)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Recipient{Name: c.Name, Address: addr})
	}
	return out
}
