package game

import (
	"time"

	"github.com/google/uuid"
)

// Game types.
const (
	TypeRegular   = "regular"
	TypeScrimmage = "scrimmage"
	TypePlayoff   = "playoff"
)

// ValidTypes lists every game type.
var ValidTypes = []string{TypeRegular, TypeScrimmage, TypePlayoff}

// Plan is the coaching game plan attached to a game.
type Plan struct {
	Keys          []string `json:"keys"`
	OpeningScript []string `json:"openingScript"`
	Notes         string   `json:"notes"`
}

// Game represents a row in the games table.
type Game struct {
	ID            uuid.UUID
	TeamID        uuid.UUID
	Opponent      string
	KickoffAt     time.Time
	Location      string
	IsHome        bool
	GameType      string
	TeamScore     *int
	OpponentScore *int
	Notes         string
	Plan          Plan
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Season returns the calendar year of kickoff.
func (g *Game) Season() int {
	return g.KickoffAt.UTC().Year()
}

// UpdateFields holds optional fields for a partial game update.
// Nil fields are not updated.
type UpdateFields struct {
	Opponent      *string
	KickoffAt     *time.Time
	Location      *string
	IsHome        *bool
	GameType      *string
	TeamScore     *int
	OpponentScore *int
	Notes         *string
	Plan          *Plan
}

// ListFilter holds optional filters and pagination for listing games.
type ListFilter struct {
	Season *int
	Page   int
	Limit  int
}

// ListResult holds a page of games and the total count.
type ListResult struct {
	Games []Game
	Total int
	Page  int
	Limit int
}
