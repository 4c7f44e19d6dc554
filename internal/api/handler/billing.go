package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/tier"
)

const maxWebhookBytes = 64 << 10

// BillingService is the subset of billing.Service used by BillingHandler.
type BillingService interface {
	Overview(ctx context.Context, teamID uuid.UUID) (*billing.Subscription, *billing.TokenBalance, billing.Access, error)
	Transactions(ctx context.Context, teamID uuid.UUID, page, limit int) ([]billing.TokenTransaction, int, error)
	Checkout(ctx context.Context, teamID uuid.UUID, tierName, email string) (string, error)
	Portal(ctx context.Context, teamID uuid.UUID) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type checkoutRequest struct {
	Tier string `json:"tier" validate:"notblank"`
}

type subscriptionResponse struct {
	Tier             string  `json:"tier"`
	Status           string  `json:"status"`
	TrialEndsAt      *string `json:"trialEndsAt"`
	CurrentPeriodEnd *string `json:"currentPeriodEnd"`
	CanceledAt       *string `json:"canceledAt"`
	HasPaymentMethod bool    `json:"hasPaymentMethod"`
}

type accessResponse struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	TrialDaysLeft *int   `json:"trialDaysLeft"`
}

type balanceResponse struct {
	Balance         int    `json:"balance"`
	PeriodAllotment int    `json:"periodAllotment"`
	ResetsAt        string `json:"resetsAt"`
}

type billingOverviewResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	Access       accessResponse       `json:"access"`
	Tokens       balanceResponse      `json:"tokens"`
}

type transactionResponse struct {
	ID        string  `json:"id"`
	Delta     int     `json:"delta"`
	Reason    string  `json:"reason"`
	Feature   string  `json:"feature,omitempty"`
	ActorID   *string `json:"actorId"`
	CreatedAt string  `json:"createdAt"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

func toSubscriptionResponse(s *billing.Subscription) subscriptionResponse {
	return subscriptionResponse{
		Tier:             s.TierName,
		Status:           s.Status,
		TrialEndsAt:      response.TimePtr(s.TrialEndsAt),
		CurrentPeriodEnd: response.TimePtr(s.CurrentPeriodEnd),
		CanceledAt:       response.TimePtr(s.CanceledAt),
		HasPaymentMethod: s.StripeCustomerID != nil && *s.StripeCustomerID != "",
	}
}

func toBalanceResponse(b *billing.TokenBalance) balanceResponse {
	return balanceResponse{
		Balance:         b.Balance,
		PeriodAllotment: b.PeriodAllotment,
		ResetsAt:        response.Time(b.ResetsAt),
	}
}

// BillingHandler handles the team's subscription, token ledger and the
// payment processor webhook.
type BillingHandler struct {
	svc BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(svc BillingService) *BillingHandler {
	return &BillingHandler{svc: svc}
}

func writeBillingError(w http.ResponseWriter, requestID, message string, err error) {
	switch {
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "Team has no subscription", requestID)
	case errors.Is(err, billing.ErrBillingDisabled):
		response.Err(w, http.StatusServiceUnavailable, response.CodeFeatureUnavailable, "Billing is not configured", requestID)
	case errors.Is(err, billing.ErrNoCustomer):
		response.Err(w, http.StatusConflict, response.CodeConflict, "Complete a checkout before managing billing", requestID)
	case errors.Is(err, billing.ErrTierNotPurchasable), errors.Is(err, tier.ErrTierNotFound):
		checkFields(w, []validation.FieldError{{Field: "tier", Message: "tier cannot be purchased"}}, requestID)
	default:
		internalError(w, requestID, message, err)
	}
}

// Overview handles GET /api/v1/billing.
func (h *BillingHandler) Overview(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	sub, balance, access, err := h.svc.Overview(r.Context(), teamID)
	if err != nil {
		writeBillingError(w, requestID, "Failed to load billing", err)
		return
	}

	response.Success(w, http.StatusOK, billingOverviewResponse{
		Subscription: toSubscriptionResponse(sub),
		Access: accessResponse{
			Allowed:       access.Allowed,
			Reason:        access.Reason,
			TrialDaysLeft: access.TrialDaysLeft,
		},
		Tokens: toBalanceResponse(balance),
	}, requestID)
}

// Transactions handles GET /api/v1/billing/transactions.
func (h *BillingHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	page, limit, ok := pageParams(w, r, requestID)
	if !ok {
		return
	}

	txs, total, err := h.svc.Transactions(r.Context(), teamID, page, limit)
	if err != nil {
		writeBillingError(w, requestID, "Failed to list token transactions", err)
		return
	}

	items := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		items = append(items, transactionResponse{
			ID:        t.ID.String(),
			Delta:     t.Delta,
			Reason:    t.Reason,
			Feature:   t.Feature,
			ActorID:   uuidString(t.ActorID),
			CreatedAt: response.Time(t.CreatedAt),
		})
	}
	response.SuccessList(w, http.StatusOK, items, total, page, limit, requestID)
}

// Checkout handles POST /api/v1/billing/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	var req checkoutRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if !checkFields(w, validation.Struct(req), requestID) {
		return
	}

	var email string
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		email = identity.Email
	}

	url, err := h.svc.Checkout(r.Context(), teamID, req.Tier, email)
	if err != nil {
		writeBillingError(w, requestID, "Failed to start checkout", err)
		return
	}
	response.Success(w, http.StatusOK, redirectResponse{URL: url}, requestID)
}

// Portal handles POST /api/v1/billing/portal.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	teamID, _ := scope(r)

	url, err := h.svc.Portal(r.Context(), teamID)
	if err != nil {
		writeBillingError(w, requestID, "Failed to open billing portal", err)
		return
	}
	response.Success(w, http.StatusOK, redirectResponse{URL: url}, requestID)
}

// Webhook handles POST /webhooks/stripe. The raw body is needed for signature
// verification, so it is read before any decoding.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidJSON, "Webhook body could not be read", requestID)
		return
	}

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		response.Success(w, http.StatusOK, map[string]bool{"received": true}, requestID)
	case errors.Is(err, billing.ErrInvalidSignature):
		response.Err(w, http.StatusBadRequest, response.CodeUnauthorized, "Invalid webhook signature", requestID)
	default:
		writeBillingError(w, requestID, "Failed to process webhook", err)
	}
}
