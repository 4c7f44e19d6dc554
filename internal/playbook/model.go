package playbook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Sides of the ball.
const (
	SideOffense      = "offense"
	SideDefense      = "defense"
	SideSpecialTeams = "special_teams"
)

// ValidSides lists every side of the ball.
var ValidSides = []string{SideOffense, SideDefense, SideSpecialTeams}

// ValidPlayTypes lists the accepted play types.
var ValidPlayTypes = []string{"run", "pass", "rpo", "screen", "special", "blitz", "coverage"}

// MaxDiagramBytes bounds the stored diagram document.
const MaxDiagramBytes = 256 << 10

// Play represents a row in the plays table.
type Play struct {
	ID        uuid.UUID
	TeamID    uuid.UUID
	Name      string
	Side      string
	Formation string
	PlayType  string
	Personnel string
	Tags      []string
	Diagram   json.RawMessage
	Notes     string
	CreatedBy *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateFields holds optional fields for a partial play update.
// Nil fields are not updated.
type UpdateFields struct {
	Name      *string
	Side      *string
	Formation *string
	PlayType  *string
	Personnel *string
	Tags      *[]string
	Diagram   *json.RawMessage
	Notes     *string
}

// ListFilter holds optional filters and pagination for listing plays.
type ListFilter struct {
	Side      *string
	Formation *string
	Tag       *string
	Page      int
	Limit     int
}

// ListResult holds a page of plays and the total count.
type ListResult struct {
	Plays []Play
	Total int
	Page  int
	Limit int
}

// Ref is the identity of a play without its body.
type Ref struct {
	ID   uuid.UUID
	Name string
}
