package service

import (
	"context"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/repository"
)

// BillingEventStore is the repository query used to deduplicate billing
// webhooks.
type BillingEventStore interface {
	RecordStripeEvent(ctx context.Context, arg repository.RecordStripeEventParams) (int64, error)
}

// BillingEventLog remembers which billing events have been processed.
type BillingEventLog struct {
	store BillingEventStore
}

// NewBillingEventLog creates a BillingEventLog.
func NewBillingEventLog(store BillingEventStore) *BillingEventLog {
	return &BillingEventLog{store: store}
}

// MarkProcessed records the event and reports whether it was new.
func (l *BillingEventLog) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	const op = "BillingEventLog.MarkProcessed"

	n, err := l.store.RecordStripeEvent(ctx, repository.RecordStripeEventParams{ID: eventID, Type: eventType})
	if err != nil {
		return false, domain.Internal(err, op, "failed to record billing event")
	}
	return n > 0, nil
}
