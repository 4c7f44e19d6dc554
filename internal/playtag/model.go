package playtag

import (
	"time"

	"github.com/google/uuid"
)

// Tag sources.
const (
	SourceManual = "manual"
	SourceAI     = "ai"
)

// Enumerations accepted on a play instance.
var (
	ValidSides      = []string{"offense", "defense", "special_teams"}
	ValidPlayTypes  = []string{"run", "pass", "rpo", "screen", "special", "blitz", "coverage"}
	ValidHashes     = []string{"left", "middle", "right"}
	ValidDirections = []string{"left", "middle", "right"}
	ValidResults    = []string{
		"rush", "complete", "incomplete", "sack", "interception", "fumble",
		"penalty", "touchdown", "punt", "field_goal", "kickoff", "other",
	}
	ValidSources = []string{SourceManual, SourceAI}
)

// PlayInstance is one tagged snap from game film.
type PlayInstance struct {
	ID          uuid.UUID
	TeamID      uuid.UUID
	GameID      uuid.UUID
	VideoID     *uuid.UUID
	PlayID      *uuid.UUID
	StartMs     int64
	EndMs       int64
	Quarter     *int
	Down        *int
	Distance    *int
	YardsToGoal *int
	Hash        *string
	Side        string
	PlayType    string
	Formation   string
	Personnel   string
	Direction   *string
	Result      string
	YardsGained int
	FirstDown   bool
	Touchdown   bool
	Turnover    bool
	Notes       string
	Source      string
	Confidence  *float64
	TaggingTier string
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListFilter holds optional filters for listing a game's play instances.
type ListFilter struct {
	Side   *string
	Down   *int
	Source *string
}
