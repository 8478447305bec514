package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/ohscentric/internal/billing"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

const testBaseURL = "https://app.ohscentric.com.au"

func newTestBillingHandler(b billing.Service, users *mockUserService) *BillingHandler {
	if users == nil {
		users = &mockUserService{}
	}
	return NewBillingHandler(b, users, testBaseURL+"/", NewValidator(), testLogger())
}

// =============================================================================
// Return URL Tests
// =============================================================================

func TestIsSafeRedirectURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		safe bool
	}{
		{"simple path", "/payment/success", true},
		{"path with query", "/payment/success?plan=professional", true},
		{"root path", "/", true},
		{"protocol relative", "//evil.com/payment/success", false},
		{"absolute", "https://evil.com", false},
		{"javascript scheme", "javascript:alert(1)", false},
		{"no leading slash", "payment/success", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSafeRedirectURL(tt.url)
			if result != tt.safe {
				t.Errorf("isSafeRedirectURL(%q) = %v, want %v", tt.url, result, tt.safe)
			}
		})
	}
}

func TestBillingHandler_ReturnURL(t *testing.T) {
	h := newTestBillingHandler(&mockBilling{}, nil)

	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"empty uses fallback", "", testBaseURL + "/payment/success", true},
		{"relative path joins base", "/payment/cancel", testBaseURL + "/payment/cancel", true},
		{"assistant loopback listener", "http://127.0.0.1:53127/payment/success", "http://127.0.0.1:53127/payment/success", true},
		{"localhost listener", "http://localhost:4000/payment/cancel", "http://localhost:4000/payment/cancel", true},
		{"ipv6 loopback", "http://[::1]:4000/payment/success", "http://[::1]:4000/payment/success", true},
		{"same host absolute", "https://app.ohscentric.com.au/payment/success", "https://app.ohscentric.com.au/payment/success", true},
		{"foreign host", "https://evil.example/payment/success", "", false},
		{"protocol relative", "//evil.example/payment/success", "", false},
		{"non http scheme", "ftp://127.0.0.1/payment/success", "", false},
		{"userinfo trick", "http://127.0.0.1@evil.example/payment/success", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.returnURL(tt.raw, "/payment/success")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Checkout Tests
// =============================================================================

func TestBillingHandler_CreateCheckout_CreatesCustomerOnce(t *testing.T) {
	user := testUser()

	var linked string
	users := &mockUserService{
		UpdateStripeCustomerFunc: func(ctx context.Context, userID uuid.UUID, customerID string) error {
			assert.Equal(t, user.ID, userID)
			linked = customerID
			return nil
		},
	}
	var params billing.CheckoutParams
	b := &mockBilling{
		CreateCustomerFunc: func(ctx context.Context, email, name, userID string) (string, error) {
			assert.Equal(t, user.Email, email)
			assert.Equal(t, user.ID.String(), userID)
			return "cus_new", nil
		},
		CreateCheckoutSessionFunc: func(ctx context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
			params = p
			return &billing.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.com/c/pay/cs_123"}, nil
		},
	}
	h := newTestBillingHandler(b, users)

	body := `{"success_url":"http://127.0.0.1:53127/payment/success","cancel_url":"http://127.0.0.1:53127/payment/cancel"}`
	rec := httptest.NewRecorder()
	h.CreateCheckout(rec, withUser(httptest.NewRequest("POST", "/api/stripe/create-checkout", jsonBody(body)), user))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cus_new", linked)
	assert.Equal(t, "cus_new", params.CustomerID)
	assert.Equal(t, user.ID.String(), params.UserID)
	assert.Equal(t, "http://127.0.0.1:53127/payment/success", params.SuccessURL)
	assert.Equal(t, "http://127.0.0.1:53127/payment/cancel", params.CancelURL)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_123", resp["checkout_url"])
	assert.Equal(t, "cs_123", resp["session_id"])
}

func TestBillingHandler_CreateCheckout_ExistingCustomer(t *testing.T) {
	user := testUser()
	user.StripeCustomerID = "cus_existing"

	b := &mockBilling{
		CreateCustomerFunc: func(ctx context.Context, email, name, userID string) (string, error) {
			t.Fatal("customer should not be created twice")
			return "", nil
		},
	}
	h := newTestBillingHandler(b, nil)

	rec := httptest.NewRecorder()
	h.CreateCheckout(rec, withUser(httptest.NewRequest("POST", "/api/stripe/create-checkout", jsonBody(`{}`)), user))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBillingHandler_CreateCheckout_Errors(t *testing.T) {
	tests := []struct {
		name       string
		billing    billing.Service
		body       string
		wantStatus int
	}{
		{"billing not configured", nil, `{}`, http.StatusNotImplemented},
		{"open redirect rejected", &mockBilling{}, `{"success_url":"https://evil.example/"}`, http.StatusBadRequest},
		{"stripe failure", &mockBilling{
			CreateCheckoutSessionFunc: func(ctx context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
				return nil, errors.New("stripe: api error")
			},
		}, `{}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestBillingHandler(tt.billing, nil)
			user := testUser()
			user.StripeCustomerID = "cus_existing"

			rec := httptest.NewRecorder()
			h.CreateCheckout(rec, withUser(httptest.NewRequest("POST", "/api/stripe/create-checkout", jsonBody(tt.body)), user))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotContains(t, rec.Body.String(), "stripe: api error")
		})
	}
}

// =============================================================================
// Portal Tests
// =============================================================================

func TestBillingHandler_CreatePortal(t *testing.T) {
	user := testUser()
	user.StripeCustomerID = "cus_existing"

	var gotReturn string
	b := &mockBilling{
		CreatePortalSessionFunc: func(ctx context.Context, customerID, returnURL string) (string, error) {
			assert.Equal(t, "cus_existing", customerID)
			gotReturn = returnURL
			return "https://billing.stripe.com/p/session/abc", nil
		},
	}
	h := newTestBillingHandler(b, nil)

	rec := httptest.NewRecorder()
	h.CreatePortal(rec, withUser(httptest.NewRequest("POST", "/api/stripe/create-portal", jsonBody(`{}`)), user))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testBaseURL+"/", gotReturn)
	assert.Contains(t, rec.Body.String(), `"portal_url":"https://billing.stripe.com/p/session/abc"`)
}

func TestBillingHandler_CreatePortal_NoCustomer(t *testing.T) {
	h := newTestBillingHandler(&mockBilling{}, nil)

	rec := httptest.NewRecorder()
	h.CreatePortal(rec, withUser(httptest.NewRequest("POST", "/api/stripe/create-portal", jsonBody(`{}`)), testUser()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Subscription Status Tests
// =============================================================================

func TestBillingHandler_SubscriptionStatus(t *testing.T) {
	periodEnd := time.Date(2026, 11, 17, 0, 0, 0, 0, time.UTC)

	t.Run("no subscription", func(t *testing.T) {
		h := newTestBillingHandler(&mockBilling{}, nil)

		rec := httptest.NewRecorder()
		h.SubscriptionStatus(rec, withUser(httptest.NewRequest("GET", "/api/stripe/subscription-status", nil), testUser()))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp SubscriptionStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "starter", resp.Plan)
		assert.Equal(t, "none", resp.Status)
		assert.Nil(t, resp.CurrentPeriodEnd)
	})

	t.Run("live values from stripe", func(t *testing.T) {
		user := testUser()
		user.Plan = domain.PlanProfessional
		user.SubscriptionID = "sub_123"
		user.SubscriptionStatus = domain.SubscriptionStatusActive

		b := &mockBilling{
			GetSubscriptionFunc: func(ctx context.Context, id string) (*stripe.Subscription, error) {
				return &stripe.Subscription{
					ID:                "sub_123",
					Status:            stripe.SubscriptionStatusActive,
					Customer:          &stripe.Customer{ID: "cus_1"},
					CancelAtPeriodEnd: true,
					CurrentPeriodEnd:  periodEnd.Unix(),
				}, nil
			},
		}
		h := newTestBillingHandler(b, nil)

		rec := httptest.NewRecorder()
		h.SubscriptionStatus(rec, withUser(httptest.NewRequest("GET", "/api/stripe/subscription-status", nil), user))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp SubscriptionStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "professional", resp.Plan)
		assert.Equal(t, "active", resp.Status)
		assert.True(t, resp.CancelAtPeriodEnd)
		require.NotNil(t, resp.CurrentPeriodEnd)
		assert.True(t, resp.CurrentPeriodEnd.Equal(periodEnd))
	})

	t.Run("stripe failure falls back to stored values", func(t *testing.T) {
		user := testUser()
		user.Plan = domain.PlanProfessional
		user.SubscriptionID = "sub_123"
		user.SubscriptionStatus = domain.SubscriptionStatusPastDue

		b := &mockBilling{
			GetSubscriptionFunc: func(ctx context.Context, id string) (*stripe.Subscription, error) {
				return nil, errors.New("network down")
			},
		}
		h := newTestBillingHandler(b, nil)

		rec := httptest.NewRecorder()
		h.SubscriptionStatus(rec, withUser(httptest.NewRequest("GET", "/api/stripe/subscription-status", nil), user))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"past_due"`)
	})
}
