package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func starter(used, limit, trialDays int) *UsageRecord {
	return &UsageRecord{
		Plan:               PlanStarter,
		ChatsUsedToday:     used,
		DailyLimit:         limit,
		TrialDaysRemaining: trialDays,
		IsActive:           true,
	}
}

func TestRemainingMessages(t *testing.T) {
	tests := []struct {
		name   string
		record *UsageRecord
		want   Remaining
	}{
		{name: "nil record", record: nil, want: Remaining{}},
		{name: "unused allowance", record: starter(0, 3, 2), want: Remaining{Count: 3}},
		{name: "partially used", record: starter(2, 3, 2), want: Remaining{Count: 1}},
		{name: "exactly used", record: starter(3, 3, 2), want: Remaining{Count: 0}},
		{name: "overrun clamps at zero", record: starter(5, 3, 2), want: Remaining{Count: 0}},
		{
			name:   "unlimited ignores counters",
			record: &UsageRecord{Plan: PlanProfessional, ChatsUsedToday: 500, DailyLimit: 1, IsUnlimited: true, IsActive: true},
			want:   Remaining{Unlimited: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemainingMessages(tt.record))
		})
	}
}

func TestUnlimitedRecords(t *testing.T) {
	for _, active := range []bool{true, false} {
		r := &UsageRecord{Plan: PlanAdmin, IsUnlimited: true, IsActive: active, ChatsUsedToday: 99}
		assert.True(t, RemainingMessages(r).Unlimited)
		assert.Equal(t, active, CanSendMessage(r))
	}
}

func TestNilRecordFailsClosed(t *testing.T) {
	assert.False(t, CanSendMessage(nil))
	assert.True(t, IsExpired(nil))
	assert.False(t, ShouldOfferUpgrade(nil))
	assert.Equal(t, StatusLoading, StatusLabel(nil))

	_, ok := TrialBanner(nil)
	assert.False(t, ok)
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name         string
		record       *UsageRecord
		canSend      bool
		remaining    Remaining
		expired      bool
		offerUpgrade bool
	}{
		{
			name:      "fresh starter",
			record:    starter(0, 3, 2),
			canSend:   true,
			remaining: Remaining{Count: 3},
		},
		{
			name:         "daily allowance used mid-trial",
			record:       starter(3, 3, 2),
			remaining:    Remaining{Count: 0},
			offerUpgrade: true,
		},
		{
			name:         "trial elapsed and allowance used",
			record:       starter(3, 3, 0),
			remaining:    Remaining{Count: 0},
			expired:      true,
			offerUpgrade: true,
		},
		{
			// Zero trial days alone do not expire the account while today's
			// allowance remains.
			name:      "trial elapsed with allowance left",
			record:    starter(0, 3, 0),
			canSend:   true,
			remaining: Remaining{Count: 3},
		},
		{
			name:         "inactive account",
			record:       &UsageRecord{Plan: PlanStarter, DailyLimit: 3, TrialDaysRemaining: 2},
			remaining:    Remaining{Count: 3},
			expired:      true,
			offerUpgrade: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canSend, CanSendMessage(tt.record))
			assert.Equal(t, tt.remaining, RemainingMessages(tt.record))
			assert.Equal(t, tt.expired, IsExpired(tt.record))
			assert.Equal(t, tt.offerUpgrade, ShouldOfferUpgrade(tt.record))
		})
	}
}

func TestPredicatesAreIdempotent(t *testing.T) {
	r := starter(1, 3, 1)
	before := *r

	for i := 0; i < 2; i++ {
		assert.True(t, CanSendMessage(r))
		assert.Equal(t, Remaining{Count: 2}, RemainingMessages(r))
		assert.False(t, IsExpired(r))
		assert.Equal(t, "2 messages remaining today", StatusLabel(r))
	}
	assert.Equal(t, before, *r)
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		name   string
		record *UsageRecord
		want   string
	}{
		{
			name:   "admin outranks everything",
			record: &UsageRecord{Plan: PlanAdmin, IsUnlimited: true, IsActive: true},
			want:   StatusAdminUnlimited,
		},
		{
			name:   "professional",
			record: &UsageRecord{Plan: PlanProfessional, IsUnlimited: true, IsActive: true},
			want:   StatusProfessionalUnlimited,
		},
		{name: "several remaining", record: starter(0, 3, 2), want: "3 messages remaining today"},
		{name: "one remaining", record: starter(2, 3, 2), want: "1 message remaining today"},
		{name: "exhausted", record: starter(3, 3, 2), want: StatusLimitReached},
		{
			name:   "unlimited starter",
			record: &UsageRecord{Plan: PlanStarter, IsUnlimited: true, IsActive: true},
			want:   "Unlimited messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusLabel(tt.record))
		})
	}
}

func TestTrialBanner(t *testing.T) {
	tests := []struct {
		name   string
		record *UsageRecord
		want   string
		ok     bool
	}{
		{
			name:   "professional has no banner",
			record: &UsageRecord{Plan: PlanProfessional, IsUnlimited: true, IsActive: true},
		},
		{
			name:   "admin has no banner",
			record: &UsageRecord{Plan: PlanAdmin, IsActive: true},
		},
		{
			name:   "unlimited starter has no banner",
			record: &UsageRecord{Plan: PlanStarter, IsUnlimited: true, IsActive: true, TrialDaysRemaining: 2},
		},
		{name: "lifetime", record: starter(0, 3, TrialLifetime), want: BannerLifetime, ok: true},
		{name: "elapsed", record: starter(0, 3, 0), want: BannerTrialExpired, ok: true},
		{name: "one day", record: starter(0, 3, 1), want: "1 trial day remaining", ok: true},
		{name: "counting down", record: starter(0, 3, 3), want: "3 trial days remaining", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TrialBanner(tt.record)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpgradeReasonFor(t *testing.T) {
	assert.Equal(t, UpgradeReasonNone, UpgradeReasonFor(nil))
	assert.Equal(t, UpgradeReasonNone, UpgradeReasonFor(starter(0, 3, 2)))
	assert.Equal(t, UpgradeReasonDailyLimit, UpgradeReasonFor(starter(3, 3, 2)))
	assert.Equal(t, UpgradeReasonTrialExpired, UpgradeReasonFor(starter(3, 3, 0)))
	assert.Equal(t, UpgradeReasonInactive, UpgradeReasonFor(&UsageRecord{Plan: PlanProfessional, IsUnlimited: true}))

	assert.Equal(t, "Trial Expired", UpgradeReasonTrialExpired.Title())
	assert.Equal(t, "Daily Limit Reached", UpgradeReasonDailyLimit.Title())
}

func TestDaysBetween(t *testing.T) {
	start := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysBetween(start, start.Add(10*time.Minute)))
	assert.Equal(t, 1, DaysBetween(start, start.Add(31*time.Minute)))
	assert.Equal(t, 3, DaysBetween(start, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)))
}
