package metrics

import "time"

// Chat turn outcomes
const (
	OutcomeAnswered = "answered"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

// ChatTurn records the outcome of one conversation turn
func ChatTurn(mode, outcome string) {
	ChatTurnsTotal.WithLabelValues(mode, outcome).Inc()
}

// QuotaRejected records a turn refused by entitlement
func QuotaRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	QuotaRejectionsTotal.WithLabelValues(reason).Inc()
}

// AICallCompleted records a successful provider call with its usage
func AICallCompleted(duration time.Duration, inputTokens, outputTokens, costCents int) {
	AIAPICalls.WithLabelValues("success").Inc()
	AIRequestDuration.Observe(duration.Seconds())
	AITokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	AITokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	AICostCentsTotal.Add(float64(costCents))
}

// AICallFailed records a failed provider call
func AICallFailed() {
	AIAPICalls.WithLabelValues("error").Inc()
}

// UsageSnapshotServed records a usage snapshot response
func UsageSnapshotServed(plan string) {
	UsageSnapshotsTotal.WithLabelValues(plan).Inc()
}
