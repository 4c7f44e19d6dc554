package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSubscriptionNotFound is returned when a team has no subscription row.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrSubscriptionExists is returned when creating a second subscription for a team.
var ErrSubscriptionExists = errors.New("subscription already exists")

// ErrInsufficientTokens is returned when a debit exceeds the team's balance.
var ErrInsufficientTokens = errors.New("insufficient AI tokens")

// LedgerEntry describes a balance change to record alongside the update.
type LedgerEntry struct {
	Reason  string
	Feature string
	ActorID *uuid.UUID
}

// Repository provides persistence for subscriptions and the token ledger.
type Repository interface {
	// CreateSubscription inserts a subscription and its opening token balance atomically.
	CreateSubscription(ctx context.Context, sub *Subscription, balance *TokenBalance, entry LedgerEntry) error
	GetSubscription(ctx context.Context, teamID uuid.UUID) (*Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, teamID uuid.UUID, fields SubscriptionUpdate) (*Subscription, error)
	ListExpiredTrials(ctx context.Context, now time.Time) ([]Subscription, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	StatusByTeam(ctx context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]Subscription, error)

	GetBalance(ctx context.Context, teamID uuid.UUID) (*TokenBalance, error)
	// Debit subtracts amount only if the balance covers it. Returns ErrInsufficientTokens otherwise.
	Debit(ctx context.Context, teamID uuid.UUID, amount int, entry LedgerEntry) (*TokenBalance, error)
	Credit(ctx context.Context, teamID uuid.UUID, amount int, entry LedgerEntry) (*TokenBalance, error)
	// ApplyTier moves the subscription to tierID and sets the period allotment
	// in one transaction. When allotment is above the current one the
	// difference is credited. Returns the tokens credited.
	ApplyTier(ctx context.Context, teamID, tierID uuid.UUID, allotment int, entry LedgerEntry) (*Subscription, int, error)
	// ResetPeriod refills the balance to allotment and moves ResetsAt forward.
	ResetPeriod(ctx context.Context, teamID uuid.UUID, allotment int, resetsAt time.Time) (*TokenBalance, error)
	ListDueResets(ctx context.Context, now time.Time) ([]TokenBalance, error)
	ListTransactions(ctx context.Context, teamID uuid.UUID, page, limit int) ([]TokenTransaction, int, error)
}
