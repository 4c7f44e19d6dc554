package practice

import (
	"time"

	"github.com/google/uuid"
)

// Plan sources.
const (
	SourceManual = "manual"
	SourceAI     = "ai"
)

// ValidGroups lists the position groups a period can target.
var ValidGroups = []string{"all", "offense", "defense", "special_teams", "individual"}

// Period is one timed block of a practice.
type Period struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
	Group   string `json:"group"`
	Drill   string `json:"drill"`
	Notes   string `json:"notes"`
}

// Plan represents a row in the practice_plans table.
type Plan struct {
	ID          uuid.UUID
	TeamID      uuid.UUID
	Title       string
	Date        time.Time
	DurationMin int
	Focus       string
	Periods     []Period
	Source      string
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TotalMinutes sums the period lengths.
func (p *Plan) TotalMinutes() int {
	total := 0
	for _, period := range p.Periods {
		total += period.Minutes
	}
	return total
}

// UpdateFields holds optional fields for a partial plan update.
// Nil fields are not updated.
type UpdateFields struct {
	Title       *string
	Date        *time.Time
	DurationMin *int
	Focus       *string
	Periods     *[]Period
}

// ListFilter holds optional filters and pagination for listing plans.
type ListFilter struct {
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

// ListResult holds a page of plans and the total count.
type ListResult struct {
	Plans []Plan
	Total int
	Page  int
	Limit int
}
