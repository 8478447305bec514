// Package domain contains core business types and interfaces.
//
// This file defines the usage snapshot a subscriber's entitlement is computed
// from, and the pure predicates that decide whether another conversation turn
// may be sent. Every predicate accepts a nil record and fails closed.
package domain

import (
	"fmt"
	"strconv"
	"time"
)

// TrialLifetime is the TrialDaysRemaining sentinel for accounts without a
// trial boundary.
const TrialLifetime = -1

// UsageRecord is the entitlement snapshot for one subscriber at one point in
// time. Records are never mutated after construction; a refresh produces a
// new record that replaces the previous one.
type UsageRecord struct {
	Plan               Plan      `json:"plan"`
	ChatsUsedToday     int       `json:"chatsUsedToday"`
	DailyLimit         int       `json:"dailyLimit"`
	TrialDaysRemaining int       `json:"trialDaysRemaining"`
	IsActive           bool      `json:"isActive"`
	IsUnlimited        bool      `json:"isUnlimited"`
	FetchedAt          time.Time `json:"fetchedAt"`
}

// Remaining is a message allowance that is either a count or unlimited.
type Remaining struct {
	Count     int
	Unlimited bool
}

// Exhausted reports whether no messages remain.
func (r Remaining) Exhausted() bool {
	return !r.Unlimited && r.Count == 0
}

func (r Remaining) String() string {
	if r.Unlimited {
		return "∞"
	}
	return strconv.Itoa(r.Count)
}

// RemainingMessages returns how many messages the subscriber may still send
// today. A nil record has no entitlement yet and reports zero.
func RemainingMessages(r *UsageRecord) Remaining {
	if r == nil {
		return Remaining{}
	}
	if r.IsUnlimited {
		return Remaining{Unlimited: true}
	}
	return Remaining{Count: max(0, r.DailyLimit-r.ChatsUsedToday)}
}

// IsExpired reports whether the subscriber's access has ended. An elapsed
// trial only counts as expired once today's allowance is also used up,
// unless the account is inactive outright.
func IsExpired(r *UsageRecord) bool {
	if r == nil {
		return true
	}
	return !r.IsActive || (r.TrialDaysRemaining == 0 && RemainingMessages(r).Exhausted())
}

// CanSendMessage reports whether another conversation turn may be sent.
func CanSendMessage(r *UsageRecord) bool {
	if r == nil || !r.IsActive {
		return false
	}
	if r.IsUnlimited {
		return true
	}
	return RemainingMessages(r).Count > 0
}

// ShouldOfferUpgrade reports whether entitlement is known and insufficient.
func ShouldOfferUpgrade(r *UsageRecord) bool {
	return r != nil && !CanSendMessage(r)
}

// Status label strings.
const (
	StatusLoading               = "Loading..."
	StatusAdminUnlimited        = "Admin Account - Unlimited Access"
	StatusProfessionalUnlimited = "Professional Plan - Unlimited Messages"
	StatusLimitReached          = "Daily limit reached"
)

// StatusLabel maps plan and quota to the status line shown next to the chat.
// Precedence is admin, then professional, then remaining quota, then
// exhausted.
func StatusLabel(r *UsageRecord) string {
	if r == nil {
		return StatusLoading
	}
	switch {
	case r.Plan == PlanAdmin:
		return StatusAdminUnlimited
	case r.Plan == PlanProfessional:
		return StatusProfessionalUnlimited
	}

	remaining := RemainingMessages(r)
	switch {
	case remaining.Unlimited:
		return "Unlimited messages"
	case remaining.Count == 1:
		return "1 message remaining today"
	case remaining.Count > 1:
		return fmt.Sprintf("%d messages remaining today", remaining.Count)
	default:
		return StatusLimitReached
	}
}

// Trial banner strings.
const (
	BannerLifetime     = "Lifetime access"
	BannerTrialExpired = "Trial expired"
)

// TrialBanner returns the trial countdown text, or false when no banner
// applies (unlimited, professional and admin subscribers).
func TrialBanner(r *UsageRecord) (string, bool) {
	if r == nil || r.IsUnlimited || r.Plan == PlanProfessional || r.Plan == PlanAdmin {
		return "", false
	}
	switch days := r.TrialDaysRemaining; {
	case days == TrialLifetime:
		return BannerLifetime, true
	case days == 0:
		return BannerTrialExpired, true
	case days == 1:
		return "1 trial day remaining", true
	default:
		return fmt.Sprintf("%d trial days remaining", days), true
	}
}

// UpgradeReason explains why an upgrade is being offered.
type UpgradeReason string

const (
	UpgradeReasonNone         UpgradeReason = ""
	UpgradeReasonInactive     UpgradeReason = "inactive"
	UpgradeReasonTrialExpired UpgradeReason = "trial_expired"
	UpgradeReasonDailyLimit   UpgradeReason = "daily_limit"
)

// UpgradeReasonFor returns why the subscriber cannot send, or
// UpgradeReasonNone when sending is allowed or entitlement is unknown.
func UpgradeReasonFor(r *UsageRecord) UpgradeReason {
	if !ShouldOfferUpgrade(r) {
		return UpgradeReasonNone
	}
	switch {
	case !r.IsActive:
		return UpgradeReasonInactive
	case IsExpired(r):
		return UpgradeReasonTrialExpired
	default:
		return UpgradeReasonDailyLimit
	}
}

// Title returns the heading used for the upgrade prompt.
func (u UpgradeReason) Title() string {
	switch u {
	case UpgradeReasonTrialExpired:
		return "Trial Expired"
	case UpgradeReasonInactive:
		return "Subscription Inactive"
	case UpgradeReasonDailyLimit:
		return "Daily Limit Reached"
	}
	return ""
}

// UsageDay truncates t to the UTC calendar day that usage is counted in.
func UsageDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole UTC calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(UsageDay(b).Sub(UsageDay(a)).Hours() / 24)
}
