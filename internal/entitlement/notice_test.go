package entitlement

import (
	"errors"
	"strings"
	"testing"

	"github.com/DukeRupert/ohscentric/internal/domain"
)

func TestView_Notice(t *testing.T) {
	exhausted := starter(3, baseTime)
	expired := domain.UsageRecord{Plan: domain.PlanStarter, ChatsUsedToday: 3, DailyLimit: 3, TrialDaysRemaining: 0, IsActive: true}
	available := starter(0, baseTime)
	offline := errors.New("offline")

	tests := []struct {
		name        string
		view        View
		want        Notice
		wantMessage string
	}{
		{"nothing yet", View{State: StateUnknown}, NoticeNone, ""},
		{"first load", View{State: StateLoading}, NoticeLoading, domain.StatusLoading},
		{"reloading keeps quiet", View{State: StateLoading, Record: &available}, NoticeNone, ""},
		{"signed out", View{State: StateUnknown, NeedsReauth: true}, NoticeReauthenticate, "Log in again"},
		{"unavailable", View{State: StateUnavailable, Err: offline}, NoticeConnectivity, "Check your connection"},
		{"degraded", View{State: StateKnown, Record: &available, Degraded: true, Err: offline}, NoticeConnectivity, "last known usage"},
		{"connectivity outranks upgrade", View{State: StateKnown, Record: &exhausted, Degraded: true, Err: offline}, NoticeConnectivity, "Not connected"},
		{"daily limit", View{State: StateKnown, Record: &exhausted}, NoticeUpgrade, "Daily Limit Reached"},
		{"trial expired", View{State: StateKnown, Record: &expired}, NoticeUpgrade, "Trial Expired"},
		{"can send", View{State: StateKnown, Record: &available}, NoticeNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.view.Notice(); got != tt.want {
				t.Errorf("Notice() = %v, want %v", got, tt.want)
			}
			msg := tt.view.Message()
			if tt.wantMessage == "" && msg != "" {
				t.Errorf("Message() = %q, want empty", msg)
			}
			if !strings.Contains(msg, tt.wantMessage) {
				t.Errorf("Message() = %q, want it to contain %q", msg, tt.wantMessage)
			}
		})
	}
}

func TestView_CanSendMessage(t *testing.T) {
	available := starter(1, baseTime)
	inactive := starter(0, baseTime)
	inactive.IsActive = false
	unlimited := domain.UsageRecord{Plan: domain.PlanAdmin, IsActive: true, IsUnlimited: true, TrialDaysRemaining: -1}

	tests := []struct {
		name string
		view View
		want bool
	}{
		{"unknown", View{State: StateUnknown}, false},
		{"unavailable", View{State: StateUnavailable}, false},
		{"loading without record", View{State: StateLoading}, false},
		{"loading with record", View{State: StateLoading, Record: &available}, true},
		{"known", View{State: StateKnown, Record: &available}, true},
		{"degraded keeps last answer", View{State: StateKnown, Record: &available, Degraded: true}, true},
		{"inactive", View{State: StateKnown, Record: &inactive}, false},
		{"unlimited", View{State: StateKnown, Record: &unlimited}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.view.CanSendMessage(); got != tt.want {
				t.Errorf("CanSendMessage() = %v, want %v", got, tt.want)
			}
		})
	}
}
