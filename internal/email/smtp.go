package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const boundary = "===============OHSCENTRIC_BOUNDARY==============="

// resetTokenLifetime is stated in the email body. It matches
// domain.PasswordResetTokenDuration.
const resetTokenLifetime = "1 hour"

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPEmailService sends emails via SMTP.
type SMTPEmailService struct {
	config    SMTPConfig
	templates *template.Template
	sendMail  sendMailFunc
	logger    *slog.Logger
}

// NewSMTPEmailService creates an SMTP sender with the embedded templates.
func NewSMTPEmailService(config SMTPConfig, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		templates: templates,
		sendMail:  smtp.SendMail,
		logger:    logger,
	}, nil
}

// ResetCommand is the assistant invocation that redeems a reset token.
func ResetCommand(token string) string {
	return "assistant reset-password --token " + token
}

// SendPasswordResetEmail sends the reset token to a subscriber.
func (s *SMTPEmailService) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	command := ResetCommand(token)

	htmlBody, err := s.renderTemplate("password_reset.html", map[string]any{
		"Name":      name,
		"Command":   command,
		"ExpiresIn": resetTokenLifetime,
		"Year":      time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render password reset email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

We received a request to reset your Ohscentric password. Run this command in your terminal to choose a new one:

    %s

The token expires in %s and works once.

If you didn't request a password reset, you can ignore this email. Your password will not change.

The Ohscentric Team
`, name, command, resetTokenLifetime)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Reset your Ohscentric password",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendMail(addr, auth, s.config.From, []string{email.To}, s.buildMessage(email)); err != nil {
		s.logger.Error("failed to send email", "subject", email.Subject, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", "subject", email.Subject)
	return nil
}

// buildMessage renders a multipart/alternative message with a text part
// first and an HTML part second.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	buf.WriteString("\r\n")

	writePart := func(contentType, body string) {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; charset=utf-8\r\n", contentType)
		buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(body)
		buf.WriteString("\r\n")
	}
	writePart("text/plain", email.TextBody)
	writePart("text/html", email.HTMLBody)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

func (s *SMTPEmailService) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ Sender = (*SMTPEmailService)(nil)
