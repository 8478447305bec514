package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  []byte
}

func newTestService(t *testing.T, cfg SMTPConfig) (*SMTPEmailService, *[]sentMail) {
	t.Helper()
	svc, err := NewSMTPEmailService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var sent []sentMail
	svc.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: msg})
		return nil
	}
	return svc, &sent
}

// parts reads the multipart body of a sent message keyed by content type.
func parts(t *testing.T, raw []byte) (*mail.Message, map[string]string) {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	bodies := make(map[string]string)
	r := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		bodies[ct] = string(b)
	}
	return msg, bodies
}

func TestSendPasswordResetEmail(t *testing.T) {
	svc, sent := newTestService(t, SMTPConfig{Host: "localhost", Port: 1025})
	token := strings.Repeat("ab", 32)

	require.NoError(t, svc.SendPasswordResetEmail(context.Background(), "kim@example.com", "Kim", token))
	require.Len(t, *sent, 1)

	got := (*sent)[0]
	assert.Equal(t, "localhost:1025", got.addr)
	assert.Nil(t, got.auth, "no auth without credentials")
	assert.Equal(t, DefaultFromEmail, got.from)
	assert.Equal(t, []string{"kim@example.com"}, got.to)

	msg, bodies := parts(t, got.msg)
	assert.Equal(t, "Ohscentric <noreply@ohscentric.com>", msg.Header.Get("From"))
	assert.Equal(t, "Reset your Ohscentric password", msg.Header.Get("Subject"))

	for _, ct := range []string{"text/plain", "text/html"} {
		body, ok := bodies[ct]
		require.True(t, ok, ct)
		assert.Contains(t, body, ResetCommand(token), ct)
		assert.Contains(t, body, "Kim", ct)
		assert.Contains(t, body, "1 hour", ct)
	}
}

func TestSendPasswordResetEmail_EscapesName(t *testing.T) {
	svc, sent := newTestService(t, SMTPConfig{Host: "localhost", Port: 1025})

	require.NoError(t, svc.SendPasswordResetEmail(context.Background(), "x@example.com", "<b>Kim</b>", strings.Repeat("c", 64)))

	_, bodies := parts(t, (*sent)[0].msg)
	assert.NotContains(t, bodies["text/html"], "<b>Kim</b>")
	assert.Contains(t, bodies["text/html"], "&lt;b&gt;Kim&lt;/b&gt;")
}

func TestSend_UsesAuthWhenConfigured(t *testing.T) {
	svc, sent := newTestService(t, SMTPConfig{
		Host: "smtp.example.com", Port: 587, Username: "relay", Password: "secret",
		From: "help@example.com", FromName: "Help Desk",
	})

	require.NoError(t, svc.SendPasswordResetEmail(context.Background(), "kim@example.com", "Kim", strings.Repeat("d", 64)))

	got := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "help@example.com", got.from)
	msg, _ := parts(t, got.msg)
	assert.Equal(t, "Help Desk <help@example.com>", msg.Header.Get("From"))
}

func TestSend_Errors(t *testing.T) {
	svc, _ := newTestService(t, SMTPConfig{Host: "localhost", Port: 1025})
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := svc.SendPasswordResetEmail(context.Background(), "kim@example.com", "Kim", strings.Repeat("e", 64))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = svc.SendPasswordResetEmail(ctx, "kim@example.com", "Kim", strings.Repeat("e", 64))
	assert.ErrorIs(t, err, context.Canceled)
}
