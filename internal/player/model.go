package player

import (
	"time"

	"github.com/google/uuid"
)

// Player statuses.
const (
	StatusActive   = "active"
	StatusInjured  = "injured"
	StatusInactive = "inactive"
)

// ValidStatuses lists every roster status.
var ValidStatuses = []string{StatusActive, StatusInjured, StatusInactive}

// Positions lists the accepted position codes in depth-chart order.
var Positions = []string{
	"QB", "RB", "FB", "WR", "TE", "OL", "C", "OG", "OT",
	"DL", "DT", "DE", "LB", "ILB", "OLB", "CB", "S", "DB",
	"K", "P", "LS", "KR", "PR", "ATH",
}

// IsPosition reports whether code is a known position.
func IsPosition(code string) bool {
	for _, p := range Positions {
		if p == code {
			return true
		}
	}
	return false
}

// Player represents a row in the players table.
type Player struct {
	ID           uuid.UUID
	TeamID       uuid.UUID
	FirstName    string
	LastName     string
	JerseyNumber int
	Positions    []string
	Grade        *int
	HeightIn     *int
	WeightLb     *int
	Status       string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrimaryPosition returns the first listed position, or "ATH" when none is set.
func (p *Player) PrimaryPosition() string {
	if len(p.Positions) == 0 {
		return "ATH"
	}
	return p.Positions[0]
}

// UpdateFields holds optional fields for a partial player update.
// Nil fields are not updated.
type UpdateFields struct {
	FirstName    *string
	LastName     *string
	JerseyNumber *int
	Positions    *[]string
	Grade        *int
	HeightIn     *int
	WeightLb     *int
	Status       *string
	Notes        *string
}

// ListFilter holds optional filters and pagination for listing players.
type ListFilter struct {
	Position *string
	Status   *string
	Page     int
	Limit    int
}

// ListResult holds a page of players and the total count.
type ListResult struct {
	Players []Player
	Total   int
	Page    int
	Limit   int
}
