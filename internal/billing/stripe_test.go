package billing

import (
	"testing"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func subscriptionWithPrice(status stripe.SubscriptionStatus, priceID string) *stripe.Subscription {
	return &stripe.Subscription{
		ID:               "sub_123",
		Status:           status,
		Customer:         &stripe.Customer{ID: "cus_123"},
		CurrentPeriodEnd: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: priceID}}},
		},
	}
}

func TestPlanForPriceID(t *testing.T) {
	svc := NewStripeService("sk_test", "whsec", PriceConfig{ProfessionalMonthlyPriceID: "price_pro"})

	assert.Equal(t, domain.PlanProfessional, svc.PlanForPriceID("price_pro"))
	assert.Equal(t, domain.Plan(""), svc.PlanForPriceID("price_other"))
}

func TestSubscriptionUpdate(t *testing.T) {
	planFor := NewStripeService("sk_test", "whsec", PriceConfig{ProfessionalMonthlyPriceID: "price_pro"}).PlanForPriceID

	tests := []struct {
		name       string
		sub        *stripe.Subscription
		wantPlan   domain.Plan
		wantStatus domain.SubscriptionStatus
	}{
		{
			name:       "active professional",
			sub:        subscriptionWithPrice(stripe.SubscriptionStatusActive, "price_pro"),
			wantPlan:   domain.PlanProfessional,
			wantStatus: domain.SubscriptionStatusActive,
		},
		{
			name:       "past due keeps plan",
			sub:        subscriptionWithPrice(stripe.SubscriptionStatusPastDue, "price_pro"),
			wantPlan:   domain.PlanProfessional,
			wantStatus: domain.SubscriptionStatusPastDue,
		},
		{
			name:       "canceled returns to starter",
			sub:        subscriptionWithPrice(stripe.SubscriptionStatusCanceled, "price_pro"),
			wantPlan:   domain.PlanStarter,
			wantStatus: domain.SubscriptionStatusCanceled,
		},
		{
			name:       "unknown price",
			sub:        subscriptionWithPrice(stripe.SubscriptionStatusActive, "price_mystery"),
			wantPlan:   domain.PlanStarter,
			wantStatus: domain.SubscriptionStatusActive,
		},
		{
			name:       "incomplete is unpaid",
			sub:        subscriptionWithPrice(stripe.SubscriptionStatusIncomplete, "price_pro"),
			wantPlan:   domain.PlanProfessional,
			wantStatus: domain.SubscriptionStatusUnpaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := SubscriptionUpdate(tt.sub, planFor)
			assert.Equal(t, "cus_123", update.CustomerID)
			assert.Equal(t, "sub_123", update.SubscriptionID)
			assert.Equal(t, tt.wantPlan, update.Plan)
			assert.Equal(t, tt.wantStatus, update.Status)
			require.NotNil(t, update.CurrentPeriodEnd)
			assert.Equal(t, 2026, update.CurrentPeriodEnd.Year())
		})
	}
}
