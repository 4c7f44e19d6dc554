package comms

import (
	"time"

	"github.com/google/uuid"
)

// Contact relationships.
const (
	RelationshipParent   = "parent"
	RelationshipGuardian = "guardian"
	RelationshipOther    = "other"
)

// ValidRelationships lists the accepted contact relationships.
var ValidRelationships = []string{RelationshipParent, RelationshipGuardian, RelationshipOther}

// Message audiences.
const (
	AudienceAll     = "all"
	AudiencePlayers = "players"
)

// ValidAudiences lists the accepted message audiences.
var ValidAudiences = []string{AudienceAll, AudiencePlayers}

// Contact is a parent or guardian reachable by email.
type Contact struct {
	ID           uuid.UUID
	TeamID       uuid.UUID
	PlayerID     *uuid.UUID
	Name         string
	Email        string
	Phone        string
	Relationship string
	OptedOut     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContactUpdate holds optional fields for a partial contact update.
type ContactUpdate struct {
	PlayerID     *uuid.UUID
	ClearPlayer  bool
	Name         *string
	Email        *string
	Phone        *string
	Relationship *string
	OptedOut     *bool
}

// Message is a sent team communication.
type Message struct {
	ID             uuid.UUID
	TeamID         uuid.UUID
	Subject        string
	Body           string
	Audience       string
	PlayerIDs      []uuid.UUID
	RecipientCount int
	SentBy         *uuid.UUID
	SentAt         time.Time
}

// ListFilter holds pagination for message history.
type ListFilter struct {
	Page  int
	Limit int
}

// MessageList is a page of sent messages.
type MessageList struct {
	Messages []Message
	Total    int
	Page     int
	Limit    int
}
