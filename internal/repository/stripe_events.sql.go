package repository

import (
	"context"
)

const recordStripeEvent = `-- name: RecordStripeEvent :execrows
INSERT INTO stripe_events (id, type)
VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING`

type RecordStripeEventParams struct {
	ID   string
	Type string
}

// RecordStripeEvent returns 0 when the event was already processed.
func (q *Queries) RecordStripeEvent(ctx context.Context, arg RecordStripeEventParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, recordStripeEvent, arg.ID, arg.Type)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
