// Package handler contains the HTTP handlers of the Ohscentric API.
//
// This file implements billing/subscription management handlers backed by Stripe.
//
// Routes handled:
//   - POST /api/stripe/create-checkout     -> CreateCheckout
//   - POST /api/stripe/create-portal       -> CreatePortal
//   - GET  /api/stripe/subscription-status -> SubscriptionStatus
package handler

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/billing"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/service"
	"github.com/go-playground/validator/v10"
)

// BillingHandler handles billing and subscription management HTTP requests.
type BillingHandler struct {
	billing     billing.Service
	userService service.UserService
	baseURL     string
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, userService service.UserService, baseURL string, validate *validator.Validate, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:     billingService,
		userService: userService,
		baseURL:     strings.TrimRight(baseURL, "/"),
		validate:    validate,
		logger:      logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/stripe/create-checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/stripe/create-portal", requireUser(http.HandlerFunc(h.CreatePortal)))
	mux.Handle("GET /api/stripe/subscription-status", requireUser(http.HandlerFunc(h.SubscriptionStatus)))
}

type checkoutRequest struct {
	SuccessURL string `json:"success_url" validate:"omitempty,max=2048"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,max=2048"`
}

type portalRequest struct {
	ReturnURL string `json:"return_url" validate:"omitempty,max=2048"`
}

// SubscriptionStatusResponse describes the caller's paid subscription.
type SubscriptionStatusResponse struct {
	Plan              string     `json:"plan"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

// CreateCheckout creates a Stripe Checkout session for the professional plan.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "BillingHandler.CreateCheckout"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured."))
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	successURL, ok := h.returnURL(req.SuccessURL, "/payment/success")
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "success_url is not an allowed return address."))
		return
	}
	cancelURL, ok := h.returnURL(req.CancelURL, "/payment/cancel")
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "cancel_url is not an allowed return address."))
		return
	}

	// Ensure user has a Stripe customer
	customerID := user.StripeCustomerID
	if customerID == "" {
		var err error
		customerID, err = h.billing.CreateCustomer(r.Context(), user.Email, user.DisplayName(), user.ID.String())
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to initialize billing."))
			return
		}
		if err := h.userService.UpdateStripeCustomer(r.Context(), user.ID, customerID); err != nil {
			h.logger.Error("failed to save stripe customer ID", "error", err, "user_id", user.ID)
		}
	}

	session, err := h.billing.CreateCheckoutSession(r.Context(), billing.CheckoutParams{
		CustomerID: customerID,
		UserID:     user.ID.String(),
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to create checkout session."))
		return
	}

	h.logger.Info("checkout session created", "user_id", user.ID, "session_id", session.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"checkout_url": session.URL,
		"session_id":   session.ID,
	})
}

// CreatePortal creates a Stripe Customer Portal session.
func (h *BillingHandler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	const op = "BillingHandler.CreatePortal"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured."))
		return
	}
	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No billing account exists yet. Upgrade first."))
		return
	}

	var req portalRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	returnURL, ok := h.returnURL(req.ReturnURL, "/")
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "return_url is not an allowed return address."))
		return
	}

	portalURL, err := h.billing.CreatePortalSession(r.Context(), user.StripeCustomerID, returnURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Failed to open billing portal."))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"portal_url": portalURL})
}

// SubscriptionStatus reports the caller's plan and subscription state. Live
// details are fetched from Stripe when available and fall back to the
// stored values.
func (h *BillingHandler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	resp := SubscriptionStatusResponse{
		Plan:              string(user.EffectivePlan()),
		Status:            string(user.SubscriptionStatus),
		CurrentPeriodEnd:  user.CurrentPeriodEnd,
		CancelAtPeriodEnd: user.CancelAtPeriodEnd,
	}
	if resp.Status == "" {
		resp.Status = "none"
	}

	if h.billing != nil && user.SubscriptionID != "" {
		sub, err := h.billing.GetSubscription(r.Context(), user.SubscriptionID)
		if err != nil {
			h.logger.Warn("failed to fetch stripe subscription", "error", err, "subscription_id", user.SubscriptionID)
		} else {
			update := billing.SubscriptionUpdate(sub, h.billing.PlanForPriceID)
			resp.Status = string(update.Status)
			resp.CurrentPeriodEnd = update.CurrentPeriodEnd
			resp.CancelAtPeriodEnd = update.CancelAtPeriodEnd
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// returnURL resolves a client-supplied return address. Empty values use
// fallback on the API's base URL. Absolute addresses must point back at the
// base URL's host or at a loopback listener run by the assistant.
func (h *BillingHandler) returnURL(raw, fallback string) (string, bool) {
	if raw == "" {
		return h.baseURL + fallback, true
	}
	if isSafeRedirectURL(raw) {
		return h.baseURL + raw, true
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.User != nil {
		return "", false
	}
	if isLoopbackHost(u.Hostname()) {
		return u.String(), true
	}
	if base, err := url.Parse(h.baseURL); err == nil && strings.EqualFold(base.Host, u.Host) {
		return u.String(), true
	}
	return "", false
}

// isSafeRedirectURL reports whether rawURL is a same-site relative path.
func isSafeRedirectURL(rawURL string) bool {
	// Must start with / but not // (protocol-relative URL)
	if !strings.HasPrefix(rawURL, "/") || strings.HasPrefix(rawURL, "//") {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	// Must not have a scheme or host
	return parsed.Scheme == "" && parsed.Host == ""
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
