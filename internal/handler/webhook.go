// Package handler contains the HTTP handlers of the Ohscentric API.
//
// This file implements the Stripe webhook handler for processing billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/ohscentric/internal/billing"
	"github.com/DukeRupert/ohscentric/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBody bounds a webhook payload.
const maxWebhookBody = 65536

// EventLog deduplicates webhook deliveries.
type EventLog interface {
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing     billing.Service
	userService service.UserService
	events      EventLog
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, userService service.UserService, events EventLog, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		userService: userService,
		events:      events,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC: no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Verify signature
	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Processing outlives the delivery if Stripe hangs up.
	ctx := context.WithoutCancel(r.Context())

	if h.events != nil {
		fresh, err := h.events.MarkProcessed(ctx, event.ID, string(event.Type))
		if err != nil {
			h.logger.Error("failed to record webhook event", "error", err, "id", event.ID)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !fresh {
			h.logger.Info("duplicate stripe webhook ignored", "type", event.Type, "id", event.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	// Route to event-specific handler
	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		h.handleSubscriptionChanged(ctx, event)
	case "invoice.payment_succeeded", "invoice.payment_failed":
		h.handleInvoice(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return
	}

	if session.Customer == nil || session.Subscription == nil {
		h.logger.Warn("checkout session missing customer or subscription", "session_id", session.ID)
		return
	}
	customerID := session.Customer.ID

	// Link the customer when checkout created it.
	if userID, err := uuid.Parse(session.ClientReferenceID); err == nil {
		if _, err := h.userService.GetByStripeCustomerID(ctx, customerID); err != nil {
			if err := h.userService.UpdateStripeCustomer(ctx, userID, customerID); err != nil {
				h.logger.Error("failed to link stripe customer on checkout", "error", err, "user_id", userID)
			}
		}
	}

	h.syncSubscription(ctx, session.Subscription.ID, "checkout")
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "type", event.Type)
		return
	}
	h.apply(ctx, &sub, string(event.Type))
}

// handleInvoice refreshes the subscription the invoice belongs to, moving it
// into or out of past_due.
func (h *WebhookHandler) handleInvoice(ctx context.Context, event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice event", "error", err, "type", event.Type)
		return
	}
	if invoice.Subscription == nil {
		return
	}
	h.syncSubscription(ctx, invoice.Subscription.ID, string(event.Type))
}

func (h *WebhookHandler) syncSubscription(ctx context.Context, subscriptionID, action string) {
	sub, err := h.billing.GetSubscription(ctx, subscriptionID)
	if err != nil {
		h.logger.Error("failed to fetch subscription", "error", err, "subscription_id", subscriptionID, "action", action)
		return
	}
	h.apply(ctx, sub, action)
}

func (h *WebhookHandler) apply(ctx context.Context, sub *stripe.Subscription, action string) {
	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID, "action", action)
		return
	}

	update := billing.SubscriptionUpdate(sub, h.billing.PlanForPriceID)
	if err := h.userService.ApplySubscription(ctx, update); err != nil {
		h.logger.Warn("failed to apply subscription",
			"error", err,
			"customer_id", update.CustomerID,
			"subscription_id", sub.ID,
			"action", action,
		)
		return
	}

	h.logger.Info("subscription event processed",
		"customer_id", update.CustomerID,
		"action", action,
		"status", update.Status,
		"plan", update.Plan,
	)
}
