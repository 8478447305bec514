package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type User struct {
	ID                 uuid.UUID
	Email              string
	PasswordHash       string
	Name               string
	Role               string
	Plan               string
	StripeCustomerID   sql.NullString
	SubscriptionID     sql.NullString
	SubscriptionStatus string
	CurrentPeriodEnd   sql.NullTime
	CancelAtPeriodEnd  bool
	TrialStartedAt     time.Time
	TrialDays          sql.NullInt32
	Disabled           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IpAddress pqtype.Inet
	UserAgent sql.NullString
	ExpiresAt time.Time
	CreatedAt time.Time
}

type ChatUsage struct {
	UserID    uuid.UUID
	UsedOn    time.Time
	Count     int32
	UpdatedAt time.Time
}

type StripeEvent struct {
	ID          string
	Type        string
	ProcessedAt time.Time
}

type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    sql.NullTime
	CreatedAt time.Time
}
