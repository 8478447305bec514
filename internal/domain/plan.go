// Package domain contains core business types and interfaces.
//
// This file defines subscription plans and the daily chat allowance each one
// carries.
package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Plan is the subscription tier a subscriber is on.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanAdmin        Plan = "admin"
)

// planAliases maps alternative tier names onto the closed plan set.
var planAliases = map[string]Plan{
	"enterprise": PlanAdmin,
}

// ParsePlan converts a wire value into a Plan. Unknown tiers are rejected
// rather than mapped to a default.
func ParsePlan(s string) (Plan, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := planAliases[s]; ok {
		return alias, nil
	}
	p := Plan(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanProfessional, PlanAdmin:
		return true
	}
	return false
}

var titleCaser = cases.Title(language.English)

// PlanDisplayName returns the plan name as shown to subscribers.
func PlanDisplayName(p Plan) string {
	if p == "" {
		return "Unknown"
	}
	return titleCaser.String(string(p))
}

// PlanQuota defines the daily conversation allowance for a plan.
type PlanQuota struct {
	DailyChats int
	Unlimited  bool
}

const (
	// DefaultTrialDays is the length of the free trial granted at sign-up.
	DefaultTrialDays = 3

	// DefaultDailyChats is the daily allowance of the rate-limited plans.
	DefaultDailyChats = 3
)

// PlanQuotas maps plans to their daily limits.
// Free and starter are rate limited; professional and admin are unlimited.
var PlanQuotas = map[Plan]PlanQuota{
	PlanFree:         {DailyChats: DefaultDailyChats},
	PlanStarter:      {DailyChats: DefaultDailyChats},
	PlanProfessional: {Unlimited: true},
	PlanAdmin:        {Unlimited: true},
}

// GetPlanQuota returns the quota for a plan, defaulting to the free plan for
// unknown plans.
func GetPlanQuota(p Plan) PlanQuota {
	if quota, ok := PlanQuotas[p]; ok {
		return quota
	}
	return PlanQuotas[PlanFree]
}
