package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/billing"
)

// AccessChecker reports whether a team's subscription grants access to gated features.
type AccessChecker interface {
	CheckAccess(ctx context.Context, teamID uuid.UUID) (*billing.Access, error)
}

// RequireActiveSubscription returns middleware that rejects teams whose
// subscription does not currently allow access with 402 SUBSCRIPTION_INACTIVE.
// It must run after a team role check.
func RequireActiveSubscription(checker AccessChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil || identity.TeamID == nil {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Team membership required", requestID)
				return
			}

			access, err := checker.CheckAccess(r.Context(), *identity.TeamID)
			if err != nil {
				slog.Error("failed to check subscription", "error", err, "team", *identity.TeamID)
				response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Failed to check subscription", requestID)
				return
			}
			if !access.Allowed {
				response.ErrWithDetails(w, http.StatusPaymentRequired, response.CodeSubscriptionInactive,
					"An active subscription is required", map[string]string{"status": access.Status, "reason": access.Reason}, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
