package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses.
const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

// ValidStatuses lists every subscription status an admin may set.
var ValidStatuses = []string{StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusExpired}

// Token ledger reasons.
const (
	ReasonTrialStart = "trial_start"
	ReasonConsume    = "consume"
	ReasonRefund     = "refund"
	ReasonGrant      = "grant"
	ReasonTierChange = "tier_change"
	ReasonReactivate = "reactivate"
	ReasonReset      = "period_reset"
)

// TokenPeriod is how often a team's token balance is refilled to its allotment.
const TokenPeriod = 30 * 24 * time.Hour

// Subscription represents a row in the subscriptions table joined with its tier name.
type Subscription struct {
	TeamID               uuid.UUID
	TierID               uuid.UUID
	TierName             string
	Status               string
	TrialEndsAt          *time.Time
	CurrentPeriodEnd     *time.Time
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CanceledAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SubscriptionUpdate holds optional fields for a partial subscription update.
// Nil fields are not updated.
type SubscriptionUpdate struct {
	TierID               *uuid.UUID
	Status               *string
	TrialEndsAt          *time.Time
	CurrentPeriodEnd     *time.Time
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CanceledAt           *time.Time
}

// TokenBalance represents a row in the token_balances table.
type TokenBalance struct {
	TeamID          uuid.UUID
	Balance         int
	PeriodAllotment int
	ResetsAt        time.Time
	UpdatedAt       time.Time
}

// TokenTransaction is one entry of the append-only token ledger.
type TokenTransaction struct {
	ID        uuid.UUID
	TeamID    uuid.UUID
	Delta     int
	Reason    string
	Feature   string
	ActorID   *uuid.UUID
	CreatedAt time.Time
}

// Access is the outcome of an access check for gated features.
type Access struct {
	Allowed       bool
	Reason        string
	Status        string
	TierName      string
	TrialDaysLeft *int
}
