package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, name, role, plan, stripe_customer_id,
    subscription_id, subscription_status, current_period_end, cancel_at_period_end,
    trial_started_at, trial_days, disabled, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.PasswordHash,
		&i.Name,
		&i.Role,
		&i.Plan,
		&i.StripeCustomerID,
		&i.SubscriptionID,
		&i.SubscriptionStatus,
		&i.CurrentPeriodEnd,
		&i.CancelAtPeriodEnd,
		&i.TrialStartedAt,
		&i.TrialDays,
		&i.Disabled,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, password_hash, name, role, plan, trial_days)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	Role         string
	Plan         string
	TrialDays    sql.NullInt32
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Email,
		arg.PasswordHash,
		arg.Name,
		arg.Role,
		arg.Plan,
		arg.TrialDays,
	)
	return scanUser(row)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	return scanUser(row)
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + `
FROM users
WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	return scanUser(row)
}

const getUserByStripeCustomerID = `-- name: GetUserByStripeCustomerID :one
SELECT ` + userColumns + `
FROM users
WHERE stripe_customer_id = $1`

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByStripeCustomerID, stripeCustomerID)
	return scanUser(row)
}

const updateUserStripeCustomer = `-- name: UpdateUserStripeCustomer :exec
UPDATE users
SET stripe_customer_id = $2, updated_at = NOW()
WHERE id = $1`

type UpdateUserStripeCustomerParams struct {
	ID               uuid.UUID
	StripeCustomerID sql.NullString
}

func (q *Queries) UpdateUserStripeCustomer(ctx context.Context, arg UpdateUserStripeCustomerParams) error {
	_, err := q.db.ExecContext(ctx, updateUserStripeCustomer, arg.ID, arg.StripeCustomerID)
	return err
}

const updateUserSubscription = `-- name: UpdateUserSubscription :execrows
UPDATE users
SET plan = $2,
    subscription_id = $3,
    subscription_status = $4,
    current_period_end = $5,
    cancel_at_period_end = $6,
    updated_at = NOW()
WHERE stripe_customer_id = $1`

type UpdateUserSubscriptionParams struct {
	StripeCustomerID   sql.NullString
	Plan               string
	SubscriptionID     sql.NullString
	SubscriptionStatus string
	CurrentPeriodEnd   sql.NullTime
	CancelAtPeriodEnd  bool
}

func (q *Queries) UpdateUserSubscription(ctx context.Context, arg UpdateUserSubscriptionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUserSubscription,
		arg.StripeCustomerID,
		arg.Plan,
		arg.SubscriptionID,
		arg.SubscriptionStatus,
		arg.CurrentPeriodEnd,
		arg.CancelAtPeriodEnd,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateUserPassword = `-- name: UpdateUserPassword :exec
UPDATE users
SET password_hash = $2, updated_at = NOW()
WHERE id = $1`

type UpdateUserPasswordParams struct {
	ID           uuid.UUID
	PasswordHash string
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, arg.ID, arg.PasswordHash)
	return err
}
