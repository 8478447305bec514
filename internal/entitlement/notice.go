package entitlement

import "github.com/DukeRupert/ohscentric/internal/domain"

// Notice is the single prompt a client shows next to the conversation.
type Notice int

const (
	NoticeNone Notice = iota
	// NoticeLoading: no snapshot yet, a refresh is in flight.
	NoticeLoading
	// NoticeReauthenticate: the credential is missing or was rejected.
	NoticeReauthenticate
	// NoticeConnectivity: the usage endpoint could not be reached or
	// answered nonsense. Offer a retry, never an upgrade.
	NoticeConnectivity
	// NoticeUpgrade: entitlement is known and insufficient.
	NoticeUpgrade
)

func (n Notice) String() string {
	switch n {
	case NoticeNone:
		return "none"
	case NoticeLoading:
		return "loading"
	case NoticeReauthenticate:
		return "reauthenticate"
	case NoticeConnectivity:
		return "connectivity"
	case NoticeUpgrade:
		return "upgrade"
	}
	return "unknown"
}

// Notice picks the prompt for v. Re-authentication comes first, then
// connectivity, then the upgrade offer.
func (v View) Notice() Notice {
	switch {
	case v.NeedsReauth:
		return NoticeReauthenticate
	case v.State == StateUnavailable, v.Degraded:
		return NoticeConnectivity
	case v.State == StateLoading && v.Record == nil:
		return NoticeLoading
	case v.ShouldOfferUpgrade():
		return NoticeUpgrade
	}
	return NoticeNone
}

// Message returns the user-facing text for the notice.
func (v View) Message() string {
	switch v.Notice() {
	case NoticeLoading:
		return domain.StatusLoading
	case NoticeReauthenticate:
		return "You are signed out. Log in again to continue."
	case NoticeConnectivity:
		if v.Record != nil {
			return "Not connected. Showing your last known usage; try again shortly."
		}
		return "Not connected. Check your connection and try again."
	case NoticeUpgrade:
		reason := v.UpgradeReason()
		switch reason {
		case domain.UpgradeReasonTrialExpired:
			return reason.Title() + ": your free trial has ended. Upgrade to Professional for unlimited messages."
		case domain.UpgradeReasonInactive:
			return reason.Title() + ": reactivate your subscription to keep chatting."
		default:
			return reason.Title() + ": you have used today's messages. Upgrade to Professional for unlimited messages."
		}
	}
	return ""
}
