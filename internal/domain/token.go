package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// PasswordResetTokenDuration is how long a reset token remains usable.
	PasswordResetTokenDuration = time.Hour

	// ResetTokenBytes is the entropy of a reset token. The token is sent
	// hex-encoded, so it is twice this many characters.
	ResetTokenBytes = 32
)

// PasswordResetResult is a freshly issued reset token. Token is the raw
// value for the email; only its SHA-256 hash is stored.
type PasswordResetResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    uuid.UUID
	Email     string
	Name      string
}

// ResetPasswordParams contains parameters for resetting a password.
type ResetPasswordParams struct {
	Token       string // raw token from the reset email
	NewPassword string
}
