package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/doorlink/doorlink/internal/domain"
	"github.com/doorlink/doorlink/internal/http/response"
	"github.com/doorlink/doorlink/internal/repo/postgres"
	"github.com/doorlink/doorlink/pkg/logger"
)

const maxStripeBodyBytes = 65536

// StripeHandlers syncs subscription lifecycle events into the account's
// subscription_status field. Billing itself lives elsewhere; this is the
// only surface the call-handling core needs from it.
type StripeHandlers struct {
	accounts      postgres.AccountRepository
	webhookSecret string
}

func NewStripeHandlers(accounts postgres.AccountRepository, webhookSecret string) *StripeHandlers {
	return &StripeHandlers{accounts: accounts, webhookSecret: webhookSecret}
}

func (h *StripeHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxStripeBodyBytes))
	if err != nil {
		response.BadRequest(w, "Failed to read request body")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		logger.WarnContext(r.Context(), "Rejected Stripe webhook", "error", err)
		response.BadRequest(w, "Invalid signature")
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			response.BadRequest(w, "Malformed subscription payload")
			return
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			response.BadRequest(w, "Subscription event without customer")
			return
		}

		status := mapSubscriptionStatus(sub.Status)
		if event.Type == "customer.subscription.deleted" {
			status = domain.SubscriptionCanceled
		}

		updated, err := h.accounts.UpdateSubscriptionByCustomer(r.Context(), sub.Customer.ID, status)
		if err != nil {
			logger.ErrorContext(r.Context(), "Failed to sync subscription status",
				"customer_id", sub.Customer.ID, "error", err)
			response.InternalError(w, "Failed to update subscription")
			return
		}
		if !updated {
			logger.WarnContext(r.Context(), "Subscription event for unknown customer",
				"customer_id", sub.Customer.ID)
		}
	default:
		logger.DebugContext(r.Context(), "Ignoring Stripe event", "type", event.Type)
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"received": "true"})
}

func mapSubscriptionStatus(s stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionTrialing
	case stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionPastDue
	default:
		return domain.SubscriptionCanceled
	}
}
