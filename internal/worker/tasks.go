package worker

import (
	"context"
	"time"
)

// SessionPruner deletes sessions whose expiry has passed.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// ResetTokenPruner deletes password reset tokens that are expired or used.
type ResetTokenPruner interface {
	DeleteExpiredPasswordResetTokens(ctx context.Context) (int64, error)
}

// UsagePruner deletes daily usage counters older than a cutoff.
type UsagePruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExpiredSessions removes expired sign-in sessions.
type ExpiredSessions struct {
	Sessions SessionPruner
}

func (t ExpiredSessions) Name() string { return "expired_sessions" }

func (t ExpiredSessions) Run(ctx context.Context) (int64, error) {
	return t.Sessions.DeleteExpiredSessions(ctx)
}

// ExpiredResetTokens removes password reset tokens that can no longer be
// redeemed.
type ExpiredResetTokens struct {
	Tokens ResetTokenPruner
}

func (t ExpiredResetTokens) Name() string { return "expired_reset_tokens" }

func (t ExpiredResetTokens) Run(ctx context.Context) (int64, error) {
	return t.Tokens.DeleteExpiredPasswordResetTokens(ctx)
}

// StaleUsage removes usage counters for days older than RetentionDays.
type StaleUsage struct {
	Usage         UsagePruner
	RetentionDays int
	Now           func() time.Time
}

func (t StaleUsage) Name() string { return "stale_usage" }

func (t StaleUsage) Run(ctx context.Context) (int64, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return t.Usage.PruneBefore(ctx, t.Cutoff(now()))
}

// Cutoff returns the first retained usage day relative to now.
func (t StaleUsage) Cutoff(now time.Time) time.Time {
	y, m, d := now.UTC().AddDate(0, 0, -t.RetentionDays).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
