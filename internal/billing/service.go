package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/metrics"
	"github.com/huddlehq/huddle/internal/tier"
)

// ErrBillingDisabled is returned when no payment processor is configured.
var ErrBillingDisabled = errors.New("billing is not configured")

// ErrNoCustomer is returned when a team has never completed a checkout.
var ErrNoCustomer = errors.New("team has no billing customer")

// ErrTierNotPurchasable is returned for inactive tiers or tiers without a processor price.
var ErrTierNotPurchasable = errors.New("tier cannot be purchased")

// ErrInvalidAmount is returned for non-positive token amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Service implements subscriptions, trials and AI-token accounting.
type Service struct {
	repo       Repository
	tiers      tier.Repository
	gateway    Gateway
	audit      audit.Recorder
	appBaseURL string
	now        func() time.Time
}

// NewService creates a billing Service. gateway may be nil when the payment
// processor is not configured; checkout, portal and webhooks then return ErrBillingDisabled.
func NewService(repo Repository, tiers tier.Repository, gateway Gateway, recorder audit.Recorder, appBaseURL string) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		repo:       repo,
		tiers:      tiers,
		gateway:    gateway,
		audit:      recorder,
		appBaseURL: appBaseURL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StartTrial opens a trial subscription on the named tier with that tier's monthly tokens.
func (s *Service) StartTrial(ctx context.Context, teamID uuid.UUID, tierName string, days int) (*Subscription, error) {
	t, err := s.tiers.GetByName(ctx, tierName)
	if err != nil {
		return nil, fmt.Errorf("resolving trial tier: %w", err)
	}

	now := s.now()
	trialEnds := now.Add(time.Duration(days) * 24 * time.Hour)
	sub := &Subscription{
		TeamID:      teamID,
		TierID:      t.ID,
		TierName:    t.Name,
		Status:      StatusTrialing,
		TrialEndsAt: &trialEnds,
	}
	balance := &TokenBalance{
		TeamID:          teamID,
		Balance:         t.MonthlyTokens,
		PeriodAllotment: t.MonthlyTokens,
		ResetsAt:        now.Add(TokenPeriod),
	}

	if err := s.repo.CreateSubscription(ctx, sub, balance, LedgerEntry{Reason: ReasonTrialStart}); err != nil {
		return nil, err
	}
	return sub, nil
}

// AccessFor evaluates whether a subscription unlocks gated features at now.
func AccessFor(sub *Subscription, now time.Time) Access {
	if sub == nil {
		return Access{Allowed: false, Reason: "no subscription"}
	}

	a := Access{Status: sub.Status, TierName: sub.TierName}
	switch sub.Status {
	case StatusActive:
		a.Allowed = true
	case StatusPastDue:
		a.Allowed = true
		a.Reason = "payment past due"
	case StatusTrialing:
		if sub.TrialEndsAt == nil || now.Before(*sub.TrialEndsAt) {
			a.Allowed = true
			if sub.TrialEndsAt != nil {
				days := int(math.Ceil(sub.TrialEndsAt.Sub(now).Hours() / 24))
				a.TrialDaysLeft = &days
			}
		} else {
			a.Reason = "trial expired"
		}
	case StatusCanceled:
		a.Reason = "subscription canceled"
	case StatusExpired:
		a.Reason = "trial expired"
	default:
		a.Reason = "unknown subscription status"
	}
	return a
}

// CheckAccess loads the team's subscription and evaluates access.
func (s *Service) CheckAccess(ctx context.Context, teamID uuid.UUID) (*Access, error) {
	sub, err := s.repo.GetSubscription(ctx, teamID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			a := AccessFor(nil, s.now())
			return &a, nil
		}
		return nil, err
	}
	a := AccessFor(sub, s.now())
	return &a, nil
}

// Overview returns the subscription, balance and access state of a team.
func (s *Service) Overview(ctx context.Context, teamID uuid.UUID) (*Subscription, *TokenBalance, Access, error) {
	sub, err := s.repo.GetSubscription(ctx, teamID)
	if err != nil {
		return nil, nil, Access{}, err
	}
	balance, err := s.repo.GetBalance(ctx, teamID)
	if err != nil {
		return nil, nil, Access{}, err
	}
	return sub, balance, AccessFor(sub, s.now()), nil
}

// Tier returns the tier a team is subscribed to.
func (s *Service) Tier(ctx context.Context, teamID uuid.UUID) (*tier.Tier, error) {
	sub, err := s.repo.GetSubscription(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.tiers.GetByID(ctx, sub.TierID)
}

// Consume debits amount tokens for a feature. Returns ErrInsufficientTokens when the balance is short.
func (s *Service) Consume(ctx context.Context, teamID uuid.UUID, amount int, feature string, actor *uuid.UUID) (*TokenBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	b, err := s.repo.Debit(ctx, teamID, amount, LedgerEntry{Reason: ReasonConsume, Feature: feature, ActorID: actor})
	if err != nil {
		return nil, err
	}
	metrics.AITokensConsumed.WithLabelValues(feature).Add(float64(amount))
	return b, nil
}

// Refund returns tokens debited for a feature that failed.
func (s *Service) Refund(ctx context.Context, teamID uuid.UUID, amount int, feature string) (*TokenBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.Credit(ctx, teamID, amount, LedgerEntry{Reason: ReasonRefund, Feature: feature})
}

// Grant credits tokens on behalf of a platform admin. note is stored with the ledger row.
func (s *Service) Grant(ctx context.Context, teamID uuid.UUID, amount int, note string, actor *uuid.UUID) (*TokenBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	b, err := s.repo.Credit(ctx, teamID, amount, LedgerEntry{Reason: ReasonGrant, Feature: note, ActorID: actor})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor, TeamID: &teamID, Action: audit.ActionTokensGrant,
		TargetType: "team", TargetID: teamID.String(),
		Details: map[string]any{"amount": amount, "note": note, "balance": b.Balance},
	})
	return b, nil
}

// Transactions returns a page of a team's token ledger.
func (s *Service) Transactions(ctx context.Context, teamID uuid.UUID, page, limit int) ([]TokenTransaction, int, error) {
	return s.repo.ListTransactions(ctx, teamID, page, limit)
}

// CountByStatus returns subscription counts per status.
func (s *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}

// StatusByTeam returns subscriptions keyed by team.
func (s *Service) StatusByTeam(ctx context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]Subscription, error) {
	return s.repo.StatusByTeam(ctx, teamIDs)
}

// ChangeTier moves a team to another tier. Upgrades credit the difference in
// monthly tokens immediately; downgrades only lower the allotment. Applying
// the current tier tops the allotment back up, which is what a team whose
// trial lapsed needs when it buys the tier it trialed on.
func (s *Service) ChangeTier(ctx context.Context, teamID uuid.UUID, tierName string, actor *uuid.UUID) (*Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, teamID)
	if err != nil {
		return nil, err
	}
	next, err := s.tiers.GetByName(ctx, tierName)
	if err != nil {
		return nil, err
	}

	updated, credited, err := s.repo.ApplyTier(ctx, teamID, next.ID, next.MonthlyTokens, LedgerEntry{Reason: ReasonTierChange, ActorID: actor})
	if err != nil {
		return nil, fmt.Errorf("applying tier: %w", err)
	}
	if next.ID == sub.TierID && credited == 0 {
		return updated, nil
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: actor, TeamID: &teamID, Action: audit.ActionChangeTier,
		TargetType: "subscription", TargetID: teamID.String(),
		Details: map[string]any{"from": sub.TierName, "to": next.Name, "tokensCredited": credited},
	})
	return updated, nil
}

// SetStatus overrides a subscription status (platform admin). Moving a team
// back to a status with access restores its tier allotment.
func (s *Service) SetStatus(ctx context.Context, teamID uuid.UUID, status string, actor *uuid.UUID) (*Subscription, error) {
	fields := SubscriptionUpdate{Status: &status}
	now := s.now()
	if status == StatusCanceled {
		fields.CanceledAt = &now
	}
	updated, err := s.repo.UpdateSubscription(ctx, teamID, fields)
	if err != nil {
		return nil, err
	}

	credited := 0
	if AccessFor(updated, now).Allowed {
		if updated, credited, err = s.restoreAllotment(ctx, updated, actor); err != nil {
			return nil, err
		}
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: actor, TeamID: &teamID, Action: audit.ActionSubscriptionSet,
		TargetType: "subscription", TargetID: teamID.String(),
		Details: map[string]any{"status": status, "tokensCredited": credited},
	})
	return updated, nil
}

func (s *Service) restoreAllotment(ctx context.Context, sub *Subscription, actor *uuid.UUID) (*Subscription, int, error) {
	t, err := s.tiers.GetByID(ctx, sub.TierID)
	if err != nil {
		return nil, 0, err
	}
	updated, credited, err := s.repo.ApplyTier(ctx, sub.TeamID, t.ID, t.MonthlyTokens, LedgerEntry{Reason: ReasonReactivate, ActorID: actor})
	if err != nil {
		return nil, 0, fmt.Errorf("restoring token allotment: %w", err)
	}
	return updated, credited, nil
}

// Checkout returns a hosted checkout URL for buying tierName.
func (s *Service) Checkout(ctx context.Context, teamID uuid.UUID, tierName, email string) (string, error) {
	if s.gateway == nil {
		return "", ErrBillingDisabled
	}
	t, err := s.tiers.GetByName(ctx, tierName)
	if err != nil {
		return "", err
	}
	if !t.Active || t.StripePriceID == "" {
		return "", ErrTierNotPurchasable
	}

	sub, err := s.repo.GetSubscription(ctx, teamID)
	if err != nil {
		return "", err
	}

	req := CheckoutRequest{
		TeamID:        teamID,
		TierName:      t.Name,
		PriceID:       t.StripePriceID,
		CustomerEmail: email,
		SuccessURL:    s.appBaseURL + "/billing?checkout=success",
		CancelURL:     s.appBaseURL + "/billing?checkout=canceled",
	}
	if sub.StripeCustomerID != nil {
		req.CustomerID = *sub.StripeCustomerID
	}
	return s.gateway.CheckoutURL(ctx, req)
}

// Portal returns a billing-portal URL for managing payment details.
func (s *Service) Portal(ctx context.Context, teamID uuid.UUID) (string, error) {
	if s.gateway == nil {
		return "", ErrBillingDisabled
	}
	sub, err := s.repo.GetSubscription(ctx, teamID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID == nil || *sub.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	return s.gateway.PortalURL(ctx, *sub.StripeCustomerID, s.appBaseURL+"/billing")
}

// HandleWebhook verifies and applies a payment-processor event. Events for
// unknown subscriptions and unhandled types are acknowledged without changes.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return ErrBillingDisabled
	}
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	return s.applyEvent(ctx, ev)
}

func (s *Service) applyEvent(ctx context.Context, ev *WebhookEvent) error {
	var teamID uuid.UUID
	switch ev.Type {
	case EventCheckoutCompleted:
		if ev.TeamID == nil {
			slog.Warn("billing: checkout event without team reference", "event", ev.ID)
			return nil
		}
		teamID = *ev.TeamID
		status := StatusActive
		fields := SubscriptionUpdate{Status: &status}
		if ev.CustomerID != "" {
			fields.StripeCustomerID = &ev.CustomerID
		}
		if ev.SubscriptionID != "" {
			fields.StripeSubscriptionID = &ev.SubscriptionID
		}
		updated, err := s.repo.UpdateSubscription(ctx, teamID, fields)
		if err != nil {
			return s.ignoreMissing(ev, err)
		}
		if ev.TierName != "" {
			if _, err := s.ChangeTier(ctx, teamID, ev.TierName, nil); err != nil {
				return fmt.Errorf("applying purchased tier: %w", err)
			}
		} else if _, _, err := s.restoreAllotment(ctx, updated, nil); err != nil {
			return err
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted, EventPaymentFailed:
		sub, err := s.findSubscription(ctx, ev)
		if err != nil {
			return s.ignoreMissing(ev, err)
		}
		teamID = sub.TeamID

		var fields SubscriptionUpdate
		switch ev.Type {
		case EventSubscriptionUpdated:
			status := MapStripeStatus(ev.Status)
			fields.Status = &status
			fields.CurrentPeriodEnd = ev.CurrentPeriodEnd
		case EventSubscriptionDeleted:
			status := StatusCanceled
			now := s.now()
			fields.Status = &status
			fields.CanceledAt = &now
		case EventPaymentFailed:
			status := StatusPastDue
			fields.Status = &status
		}
		if _, err := s.repo.UpdateSubscription(ctx, teamID, fields); err != nil {
			return err
		}

		if ev.Type == EventSubscriptionUpdated && ev.PriceID != "" {
			t, err := s.tiers.GetByStripePriceID(ctx, ev.PriceID)
			switch {
			case err == nil && t.ID != sub.TierID:
				if _, err := s.ChangeTier(ctx, teamID, t.Name, nil); err != nil {
					return fmt.Errorf("applying subscription price change: %w", err)
				}
			case err != nil && !errors.Is(err, tier.ErrTierNotFound):
				return err
			}
		}

	default:
		slog.Debug("billing: ignoring webhook event", "type", ev.Type, "event", ev.ID)
		return nil
	}

	s.audit.Record(ctx, audit.Entry{
		TeamID: &teamID, Action: audit.ActionWebhook,
		TargetType: "subscription", TargetID: teamID.String(),
		Details: map[string]any{"event": ev.Type, "eventId": ev.ID, "status": ev.Status},
	})
	return nil
}

func (s *Service) findSubscription(ctx context.Context, ev *WebhookEvent) (*Subscription, error) {
	if ev.SubscriptionID != "" {
		sub, err := s.repo.GetByStripeSubscriptionID(ctx, ev.SubscriptionID)
		if err == nil || !errors.Is(err, ErrSubscriptionNotFound) {
			return sub, err
		}
	}
	if ev.TeamID != nil {
		return s.repo.GetSubscription(ctx, *ev.TeamID)
	}
	return nil, ErrSubscriptionNotFound
}

func (s *Service) ignoreMissing(ev *WebhookEvent, err error) error {
	if errors.Is(err, ErrSubscriptionNotFound) {
		slog.Warn("billing: webhook for unknown subscription", "type", ev.Type, "event", ev.ID)
		return nil
	}
	return err
}

// ExpireTrials marks trials that ended as expired. Returns the number expired.
func (s *Service) ExpireTrials(ctx context.Context) (int, error) {
	subs, err := s.repo.ListExpiredTrials(ctx, s.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	status := StatusExpired
	for _, sub := range subs {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.repo.UpdateSubscription(ctx, sub.TeamID, SubscriptionUpdate{Status: &status}); err != nil {
			slog.Error("billing: failed to expire trial", "team", sub.TeamID, "error", err)
			continue
		}
		slog.Info("billing: trial expired", "team", sub.TeamID)
		expired++
	}
	return expired, nil
}

// ResetDueBalances refills token balances whose period ended, for teams that
// still have access. Returns the number reset.
func (s *Service) ResetDueBalances(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListDueResets(ctx, now)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, b := range due {
		if ctx.Err() != nil {
			return reset, ctx.Err()
		}

		sub, err := s.repo.GetSubscription(ctx, b.TeamID)
		if err != nil {
			slog.Error("billing: failed to load subscription for reset", "team", b.TeamID, "error", err)
			continue
		}

		allotment := 0
		if AccessFor(sub, now).Allowed {
			t, err := s.tiers.GetByID(ctx, sub.TierID)
			if err != nil {
				slog.Error("billing: failed to load tier for reset", "team", b.TeamID, "error", err)
				continue
			}
			allotment = t.MonthlyTokens
		}

		next := b.ResetsAt
		for !next.After(now) {
			next = next.Add(TokenPeriod)
		}
		if _, err := s.repo.ResetPeriod(ctx, b.TeamID, allotment, next); err != nil {
			slog.Error("billing: failed to reset token balance", "team", b.TeamID, "error", err)
			continue
		}
		reset++
	}
	return reset, nil
}
