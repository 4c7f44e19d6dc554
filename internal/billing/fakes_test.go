package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/tier"
)

// --- In-memory Repository ---

type memRepo struct {
	mu       sync.Mutex
	subs     map[uuid.UUID]*Subscription
	balances map[uuid.UUID]*TokenBalance
	ledger   []TokenTransaction
	tiers    *memTiers

	applyTierErr error
}

func newMemRepo(tiers *memTiers) *memRepo {
	return &memRepo{
		subs:     map[uuid.UUID]*Subscription{},
		balances: map[uuid.UUID]*TokenBalance{},
		tiers:    tiers,
	}
}

func (m *memRepo) record(teamID uuid.UUID, delta int, e LedgerEntry) {
	m.ledger = append(m.ledger, TokenTransaction{
		ID: uuid.New(), TeamID: teamID, Delta: delta, Reason: e.Reason,
		Feature: e.Feature, ActorID: e.ActorID, CreatedAt: time.Now(),
	})
}

func (m *memRepo) CreateSubscription(_ context.Context, sub *Subscription, b *TokenBalance, e LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.TeamID]; ok {
		return ErrSubscriptionExists
	}
	s := *sub
	bal := *b
	m.subs[sub.TeamID] = &s
	m.balances[sub.TeamID] = &bal
	m.record(sub.TeamID, b.Balance, e)
	return nil
}

func (m *memRepo) GetSubscription(_ context.Context, teamID uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[teamID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	out := *s
	return &out, nil
}

func (m *memRepo) GetByStripeSubscriptionID(_ context.Context, stripeID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == stripeID {
			out := *s
			return &out, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (m *memRepo) UpdateSubscription(_ context.Context, teamID uuid.UUID, f SubscriptionUpdate) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[teamID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	if f.TierID != nil {
		s.TierID = *f.TierID
		if t, ok := m.tiers.byID(*f.TierID); ok {
			s.TierName = t.Name
		}
	}
	if f.Status != nil {
		s.Status = *f.Status
	}
	if f.TrialEndsAt != nil {
		s.TrialEndsAt = f.TrialEndsAt
	}
	if f.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = f.CurrentPeriodEnd
	}
	if f.StripeCustomerID != nil {
		s.StripeCustomerID = f.StripeCustomerID
	}
	if f.StripeSubscriptionID != nil {
		s.StripeSubscriptionID = f.StripeSubscriptionID
	}
	if f.CanceledAt != nil {
		s.CanceledAt = f.CanceledAt
	}
	out := *s
	return &out, nil
}

func (m *memRepo) ListExpiredTrials(_ context.Context, now time.Time) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, s := range m.subs {
		if s.Status == StatusTrialing && s.TrialEndsAt != nil && !s.TrialEndsAt.After(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memRepo) CountByStatus(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, s := range m.subs {
		out[s.Status]++
	}
	return out, nil
}

func (m *memRepo) StatusByTeam(_ context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]Subscription{}
	for _, id := range teamIDs {
		if s, ok := m.subs[id]; ok {
			out[id] = *s
		}
	}
	return out, nil
}

func (m *memRepo) GetBalance(_ context.Context, teamID uuid.UUID) (*TokenBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[teamID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	out := *b
	return &out, nil
}

func (m *memRepo) Debit(_ context.Context, teamID uuid.UUID, amount int, e LedgerEntry) (*TokenBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[teamID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	if b.Balance < amount {
		return nil, ErrInsufficientTokens
	}
	b.Balance -= amount
	m.record(teamID, -amount, e)
	out := *b
	return &out, nil
}

func (m *memRepo) Credit(_ context.Context, teamID uuid.UUID, amount int, e LedgerEntry) (*TokenBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[teamID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	b.Balance += amount
	m.record(teamID, amount, e)
	out := *b
	return &out, nil
}

func (m *memRepo) ApplyTier(_ context.Context, teamID, tierID uuid.UUID, allotment int, e LedgerEntry) (*Subscription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyTierErr != nil {
		return nil, 0, m.applyTierErr
	}
	s, ok := m.subs[teamID]
	b, okBal := m.balances[teamID]
	if !ok || !okBal {
		return nil, 0, ErrSubscriptionNotFound
	}
	s.TierID = tierID
	if t, ok := m.tiers.byID(tierID); ok {
		s.TierName = t.Name
	}
	credited := max(allotment-b.PeriodAllotment, 0)
	b.PeriodAllotment = allotment
	b.Balance += credited
	if credited > 0 {
		m.record(teamID, credited, e)
	}
	out := *s
	return &out, credited, nil
}

func (m *memRepo) ResetPeriod(_ context.Context, teamID uuid.UUID, allotment int, resetsAt time.Time) (*TokenBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[teamID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	delta := allotment - b.Balance
	b.Balance = allotment
	b.PeriodAllotment = allotment
	b.ResetsAt = resetsAt
	m.record(teamID, delta, LedgerEntry{Reason: ReasonReset})
	out := *b
	return &out, nil
}

func (m *memRepo) ListDueResets(_ context.Context, now time.Time) ([]TokenBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TokenBalance
	for _, b := range m.balances {
		if !b.ResetsAt.After(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memRepo) ListTransactions(_ context.Context, teamID uuid.UUID, page, limit int) ([]TokenTransaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []TokenTransaction
	for _, tx := range m.ledger {
		if tx.TeamID == teamID {
			all = append(all, tx)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := (page - 1) * limit
	if start > len(all) {
		return []TokenTransaction{}, len(all), nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memRepo) balance(teamID uuid.UUID) TokenBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.balances[teamID]
}

// --- In-memory tier.Repository ---

type memTiers struct {
	tiers []tier.Tier
}

func newMemTiers() *memTiers {
	return &memTiers{tiers: []tier.Tier{
		{ID: uuid.New(), Name: "basic", MonthlyTokens: 0, Active: true},
		{ID: uuid.New(), Name: "plus", MonthlyTokens: 50, StripePriceID: "price_plus", AITagging: true, Active: true},
		{ID: uuid.New(), Name: "premium", MonthlyTokens: 200, StripePriceID: "price_premium", AITagging: true, Active: true},
	}}
}

func (m *memTiers) byID(id uuid.UUID) (tier.Tier, bool) {
	for _, t := range m.tiers {
		if t.ID == id {
			return t, true
		}
	}
	return tier.Tier{}, false
}

func (m *memTiers) Create(_ context.Context, t *tier.Tier) error {
	m.tiers = append(m.tiers, *t)
	return nil
}

func (m *memTiers) GetByID(_ context.Context, id uuid.UUID) (*tier.Tier, error) {
	if t, ok := m.byID(id); ok {
		return &t, nil
	}
	return nil, tier.ErrTierNotFound
}

func (m *memTiers) GetByName(_ context.Context, name string) (*tier.Tier, error) {
	for _, t := range m.tiers {
		if t.Name == name {
			out := t
			return &out, nil
		}
	}
	return nil, tier.ErrTierNotFound
}

func (m *memTiers) GetByStripePriceID(_ context.Context, priceID string) (*tier.Tier, error) {
	for _, t := range m.tiers {
		if t.StripePriceID == priceID {
			out := t
			return &out, nil
		}
	}
	return nil, tier.ErrTierNotFound
}

func (m *memTiers) List(_ context.Context, _ bool) ([]tier.Tier, error) {
	return m.tiers, nil
}

func (m *memTiers) Update(_ context.Context, _ uuid.UUID, _ tier.UpdateFields) (*tier.Tier, error) {
	return nil, tier.ErrTierNotFound
}

func (m *memTiers) Delete(_ context.Context, _ uuid.UUID) error {
	return nil
}

// --- Gateway and audit stubs ---

type stubGateway struct {
	checkoutFn func(ctx context.Context, req CheckoutRequest) (string, error)
	portalFn   func(ctx context.Context, customerID, returnURL string) (string, error)
	event      *WebhookEvent
	parseErr   error
}

func (g *stubGateway) CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error) {
	if g.checkoutFn != nil {
		return g.checkoutFn(ctx, req)
	}
	return "https://checkout.test/session", nil
}

func (g *stubGateway) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	if g.portalFn != nil {
		return g.portalFn(ctx, customerID, returnURL)
	}
	return "https://portal.test/" + customerID, nil
}

func (g *stubGateway) ParseWebhook(_ []byte, _ string) (*WebhookEvent, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.event, nil
}

type auditSpy struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *auditSpy) Record(_ context.Context, e audit.Entry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

func (a *auditSpy) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
