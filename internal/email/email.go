// Package email sends the transactional mail of the Ohscentric API.
//
// Only password reset mail exists today. Messages go out over SMTP: Mailhog
// in development, any authenticated relay in production.
package email

import (
	"context"
)

// Sender sends transactional emails.
type Sender interface {
	// SendPasswordResetEmail sends the raw reset token to a subscriber,
	// along with the assistant command that redeems it.
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
}

// Email represents a single email message.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // e.g. "localhost" for Mailhog
	Port     int    // e.g. 1025 for Mailhog
	Username string // empty for Mailhog
	Password string
	From     string
	FromName string
}

const (
	// DefaultFromEmail is the default sender address.
	DefaultFromEmail = "noreply@ohscentric.com"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Ohscentric"
)
