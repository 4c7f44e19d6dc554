package tier

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents a row in the tiers table: one subscription plan and the
// limits it grants a team.
type Tier struct {
	ID               uuid.UUID
	Name             string
	DisplayName      string
	PriceCents       int
	MonthlyTokens    int
	MaxStaff         int
	MaxVideosPerGame int
	MaxUploadBytes   int64
	StripePriceID    string
	AITagging        bool
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpdateFields holds optional fields for a partial tier update.
// Nil fields are not updated.
type UpdateFields struct {
	DisplayName      *string
	PriceCents       *int
	MonthlyTokens    *int
	MaxStaff         *int
	MaxVideosPerGame *int
	MaxUploadBytes   *int64
	StripePriceID    *string
	AITagging        *bool
	Active           *bool
}
