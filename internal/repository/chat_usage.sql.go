package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const getChatUsage = `-- name: GetChatUsage :one
SELECT COALESCE(
    (SELECT count FROM chat_usage WHERE user_id = $1 AND used_on = $2),
    0
)::int`

type GetChatUsageParams struct {
	UserID uuid.UUID
	UsedOn time.Time
}

func (q *Queries) GetChatUsage(ctx context.Context, arg GetChatUsageParams) (int32, error) {
	row := q.db.QueryRowContext(ctx, getChatUsage, arg.UserID, arg.UsedOn)
	var count int32
	err := row.Scan(&count)
	return count, err
}

// reserveChat increments the day's counter unless it already reached the
// limit. A limit of zero or less means unlimited. No row is returned when
// the limit is reached.
const reserveChat = `-- name: ReserveChat :one
INSERT INTO chat_usage (user_id, used_on, count)
VALUES ($1, $2, 1)
ON CONFLICT (user_id, used_on) DO UPDATE
SET count = chat_usage.count + 1, updated_at = NOW()
WHERE $3::int <= 0 OR chat_usage.count < $3::int
RETURNING count`

type ReserveChatParams struct {
	UserID     uuid.UUID
	UsedOn     time.Time
	DailyLimit int32
}

func (q *Queries) ReserveChat(ctx context.Context, arg ReserveChatParams) (int32, error) {
	row := q.db.QueryRowContext(ctx, reserveChat, arg.UserID, arg.UsedOn, arg.DailyLimit)
	var count int32
	err := row.Scan(&count)
	return count, err
}

const releaseChat = `-- name: ReleaseChat :exec
UPDATE chat_usage
SET count = GREATEST(count - 1, 0), updated_at = NOW()
WHERE user_id = $1 AND used_on = $2`

type ReleaseChatParams struct {
	UserID uuid.UUID
	UsedOn time.Time
}

func (q *Queries) ReleaseChat(ctx context.Context, arg ReleaseChatParams) error {
	_, err := q.db.ExecContext(ctx, releaseChat, arg.UserID, arg.UsedOn)
	return err
}

const deleteChatUsageBefore = `-- name: DeleteChatUsageBefore :execrows
DELETE FROM chat_usage
WHERE used_on < $1`

func (q *Queries) DeleteChatUsageBefore(ctx context.Context, usedOn time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteChatUsageBefore, usedOn)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
