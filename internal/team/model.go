package team

import (
	"time"

	"github.com/google/uuid"
)

// Levels a team can compete at.
const (
	LevelYouth        = "youth"
	LevelMiddleSchool = "middle_school"
	LevelHighSchool   = "high_school"
	LevelOther        = "other"
)

// Team represents a row in the teams table. A team is the tenant boundary:
// every roster, playbook, film and billing row belongs to exactly one team.
type Team struct {
	ID        uuid.UUID
	Name      string
	Level     string
	Season    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateFields holds optional fields for a partial team update.
// Nil fields are not updated.
type UpdateFields struct {
	Name   *string
	Level  *string
	Season *int
}

// ListFilter holds optional filters and pagination for listing teams.
type ListFilter struct {
	Name  *string // partial match (ILIKE)
	Page  int
	Limit int
}

// ListResult holds one page of teams.
type ListResult struct {
	Teams []Team
	Total int
	Page  int
	Limit int
}
