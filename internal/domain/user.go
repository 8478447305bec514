// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for authentication.
// These types are separate from the repository models to allow for business logic
// enrichment and to decouple the domain layer from the database layer.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the Stripe subscription status of a paid plan.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = ""
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// Role separates staff accounts from subscribers.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered subscriber of the assistant.
type User struct {
	ID                 uuid.UUID
	Email              string
	PasswordHash       string // Never expose this in API responses
	Name               string
	Role               Role
	Plan               Plan
	StripeCustomerID   string
	SubscriptionID     string
	SubscriptionStatus SubscriptionStatus
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	TrialStartedAt     time.Time
	TrialDays          *int // nil means no trial boundary
	Disabled           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsAdmin returns true for staff accounts.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Plan == PlanAdmin
}

// HasActiveSubscription returns true if the paid subscription is usable.
func (u *User) HasActiveSubscription() bool {
	return u.SubscriptionStatus == SubscriptionStatusActive ||
		u.SubscriptionStatus == SubscriptionStatusTrialing
}

// EffectivePlan returns the plan entitlement is computed from.
func (u *User) EffectivePlan() Plan {
	if u.IsAdmin() {
		return PlanAdmin
	}
	if u.Plan == "" {
		return PlanFree
	}
	return u.Plan
}

// IsActive reports whether the account may be used at all, independent of
// today's quota. Professional accounts need a live subscription.
func (u *User) IsActive() bool {
	if u.Disabled {
		return false
	}
	if u.EffectivePlan() == PlanProfessional {
		return u.HasActiveSubscription()
	}
	return true
}

// TrialDaysRemaining returns the whole days left in the trial at now, zero
// once the trial has elapsed, or TrialLifetime when there is no boundary.
func (u *User) TrialDaysRemaining(now time.Time) int {
	if u.TrialDays == nil {
		return TrialLifetime
	}
	return max(0, *u.TrialDays-DaysBetween(u.TrialStartedAt, now))
}

// UsageSnapshot builds the entitlement record for the user given today's
// usage count.
func (u *User) UsageSnapshot(chatsUsedToday int, now time.Time) UsageRecord {
	plan := u.EffectivePlan()
	quota := GetPlanQuota(plan)

	rec := UsageRecord{
		Plan:               plan,
		ChatsUsedToday:     chatsUsedToday,
		DailyLimit:         quota.DailyChats,
		TrialDaysRemaining: TrialLifetime,
		IsActive:           u.IsActive(),
		IsUnlimited:        quota.Unlimited,
		FetchedAt:          now.UTC(),
	}
	if !quota.Unlimited {
		rec.TrialDaysRemaining = u.TrialDaysRemaining(now)
	}
	return rec
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session. The bearer credential handed
// to the client references the session by ID, so deleting the row revokes
// the credential.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email     string
	Password  string // Raw password, will be hashed by service
	Name      string
	IPAddress string
	UserAgent string
}

// LoginParams contains the parameters for a login attempt.
type LoginParams struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult contains the result of a successful login or registration.
type LoginResult struct {
	User      *User
	Token     string // Bearer credential, only returned once
	ExpiresAt time.Time
}

// SubscriptionUpdate carries subscription state received from billing.
type SubscriptionUpdate struct {
	CustomerID        string
	SubscriptionID    string
	Status            SubscriptionStatus
	Plan              Plan
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// NullInt32Value safely extracts an int pointer from sql.NullInt32.
func NullInt32Value(ni sql.NullInt32) *int {
	if ni.Valid {
		v := int(ni.Int32)
		return &v
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
