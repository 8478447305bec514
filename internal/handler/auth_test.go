package handler

import (
	"context"
	"errors"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAttempts struct {
	failed []string
	reset  []string
}

func (a *recordingAttempts) RecordFailedLogin(ip string) { a.failed = append(a.failed, ip) }
func (a *recordingAttempts) ResetLogin(ip string)        { a.reset = append(a.reset, ip) }

type sentReset struct {
	to, name, token string
}

// recordingMailer records reset emails instead of sending them.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (m *recordingMailer) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentReset{to: to, name: name, token: token})
	return m.err
}

func newTestAuthHandler(users *mockUserService, attempts LoginAttempts) *AuthHandler {
	return NewAuthHandler(users, attempts, &recordingMailer{}, NewValidator(), testLogger())
}

func TestAuthHandler_Register(t *testing.T) {
	user := testUser()
	expires := time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)

	var got domain.RegisterParams
	users := &mockUserService{
		RegisterFunc: func(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error) {
			got = params
			return &domain.LoginResult{User: user, Token: "jwt-token", ExpiresAt: expires}, nil
		},
	}
	h := newTestAuthHandler(users, nil)

	req := httptest.NewRequest("POST", "/api/auth/register",
		jsonBody(`{"name":"Sam Worker","email":"worker@example.com","password":"correct horse battery"}`))
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("User-Agent", "ohscentric-assistant/1.0")
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "worker@example.com", got.Email)
	assert.Equal(t, "203.0.113.9", got.IPAddress)
	assert.Equal(t, "ohscentric-assistant/1.0", got.UserAgent)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jwt-token", resp.Token)
	assert.Equal(t, user.ID.String(), resp.User.ID)
	assert.Equal(t, "starter", resp.User.Plan)
	assert.True(t, resp.ExpiresAt.Equal(expires))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAuthHandler_Register_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"missing email", `{"name":"Sam","password":"secret-pass"}`, http.StatusBadRequest, "email"},
		{"bad email", `{"name":"Sam","email":"not-an-email","password":"secret-pass"}`, http.StatusBadRequest, "email"},
		{"missing name", `{"email":"a@example.com","password":"secret-pass"}`, http.StatusBadRequest, "name"},
		{"malformed json", `{"name":`, http.StatusBadRequest, ""},
		{"empty body", ``, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			users := &mockUserService{
				RegisterFunc: func(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error) {
					called = true
					return nil, nil
				},
			}
			h := newTestAuthHandler(users, nil)

			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest("POST", "/api/auth/register", jsonBody(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, called, "service should not be called for invalid input")

			var resp JSONError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, domain.EINVALID, resp.Error.Code)
			if tt.wantField != "" {
				assert.Contains(t, resp.Error.Fields, tt.wantField)
			}
		})
	}
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	users := &mockUserService{
		RegisterFunc: func(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error) {
			return nil, domain.Conflict("UserService.Register", "An account with this email already exists.")
		},
	}
	h := newTestAuthHandler(users, nil)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest("POST", "/api/auth/register",
		jsonBody(`{"name":"Sam","email":"worker@example.com","password":"correct horse battery"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantFailed int
		wantResets int
	}{
		{"success resets attempts", nil, http.StatusOK, 0, 1},
		{"bad credentials count as failure", domain.Unauthorized("UserService.Login", "Invalid email or password."), http.StatusUnauthorized, 1, 0},
		{"disabled account is not a failed attempt", domain.Forbidden("UserService.Login", "This account has been disabled."), http.StatusForbidden, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := &recordingAttempts{}
			users := &mockUserService{
				LoginFunc: func(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &domain.LoginResult{User: testUser(), Token: "jwt-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
				},
			}
			h := newTestAuthHandler(users, attempts)

			req := httptest.NewRequest("POST", "/api/auth/login",
				jsonBody(`{"email":"worker@example.com","password":"secret"}`))
			req.Header.Set("X-Forwarded-For", "198.51.100.7")
			rec := httptest.NewRecorder()

			h.Login(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Len(t, attempts.failed, tt.wantFailed)
			assert.Len(t, attempts.reset, tt.wantResets)
			for _, ip := range append(attempts.failed, attempts.reset...) {
				assert.Equal(t, "198.51.100.7", ip)
			}
		})
	}
}

func TestAuthHandler_Verify(t *testing.T) {
	h := newTestAuthHandler(&mockUserService{}, nil)
	user := testUser()
	user.Plan = domain.PlanProfessional
	user.SubscriptionStatus = domain.SubscriptionStatusActive

	rec := httptest.NewRecorder()
	h.Verify(rec, withUser(httptest.NewRequest("GET", "/api/auth/verify", nil), user))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		User UserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, user.Email, resp.User.Email)
	assert.Equal(t, "professional", resp.User.Plan)
	assert.Equal(t, "active", resp.User.SubscriptionStatus)
}

func TestAuthHandler_Verify_NoUser(t *testing.T) {
	h := newTestAuthHandler(&mockUserService{}, nil)

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest("GET", "/api/auth/verify", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	user := testUser()
	var revoked string
	users := &mockUserService{
		LogoutFunc: func(ctx context.Context, token string) error {
			revoked = token
			return nil
		},
	}
	h := newTestAuthHandler(users, nil)

	rec := httptest.NewRecorder()
	h.Logout(rec, withUser(httptest.NewRequest("POST", "/api/auth/logout", nil), user))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "token-"+user.ID.String(), revoked)
}

func TestAuthHandler_Logout_NoToken(t *testing.T) {
	called := false
	users := &mockUserService{
		LogoutFunc: func(ctx context.Context, token string) error {
			called = true
			return nil
		},
	}
	h := newTestAuthHandler(users, nil)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest("POST", "/api/auth/logout", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantMail   bool
	}{
		{"known email gets a token", nil, true},
		{"unknown email looks the same", domain.NotFound("UserService.CreatePasswordResetToken", "user", "x"), false},
		{"store failure looks the same", domain.Internal(errors.New("db down"), "UserService.CreatePasswordResetToken", "boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotEmail string
			users := &mockUserService{
				CreateResetTokenFunc: func(ctx context.Context, email string) (*domain.PasswordResetResult, error) {
					gotEmail = email
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &domain.PasswordResetResult{Token: "raw-token", Email: "worker@example.com", Name: "Sam"}, nil
				},
			}
			mailer := &recordingMailer{}
			h := NewAuthHandler(users, nil, mailer, NewValidator(), testLogger())

			rec := httptest.NewRecorder()
			h.ForgotPassword(rec, httptest.NewRequest("POST", "/api/auth/forgot-password",
				jsonBody(`{"email":"worker@example.com"}`)))
			h.WaitForMail()

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.Equal(t, "worker@example.com", gotEmail)
			assert.Contains(t, rec.Body.String(), forgotPasswordMessage)
			if tt.wantMail {
				require.Len(t, mailer.sent, 1)
				assert.Equal(t, sentReset{to: "worker@example.com", name: "Sam", token: "raw-token"}, mailer.sent[0])
			} else {
				assert.Empty(t, mailer.sent)
			}
		})
	}
}

func TestAuthHandler_ForgotPassword_MailFailureStillAccepted(t *testing.T) {
	users := &mockUserService{
		CreateResetTokenFunc: func(ctx context.Context, email string) (*domain.PasswordResetResult, error) {
			return &domain.PasswordResetResult{Token: "raw-token", Email: email, Name: "Sam"}, nil
		},
	}
	mailer := &recordingMailer{err: errors.New("smtp down")}
	h := NewAuthHandler(users, nil, mailer, NewValidator(), testLogger())

	rec := httptest.NewRecorder()
	h.ForgotPassword(rec, httptest.NewRequest("POST", "/api/auth/forgot-password",
		jsonBody(`{"email":"worker@example.com"}`)))
	h.WaitForMail()

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, mailer.sent, 1)
}

func TestAuthHandler_ForgotPassword_BadEmail(t *testing.T) {
	h := newTestAuthHandler(&mockUserService{
		CreateResetTokenFunc: func(ctx context.Context, email string) (*domain.PasswordResetResult, error) {
			t.Error("service called for invalid input")
			return nil, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.ForgotPassword(rec, httptest.NewRequest("POST", "/api/auth/forgot-password", jsonBody(`{"email":"nope"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	token := strings.Repeat("f", 64)
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"success", `{"token":"` + token + `","password":"Lanyard42"}`, nil, http.StatusNoContent},
		{"missing token", `{"password":"Lanyard42"}`, nil, http.StatusBadRequest},
		{"weak password", `{"token":"` + token + `","password":"x"}`, domain.Invalid("UserService.ResetPassword", "Password must be at least 8 characters"), http.StatusBadRequest},
		{"used or expired token", `{"token":"` + token + `","password":"Lanyard42"}`, domain.NotFound("UserService.ResetPassword", "reset token", ""), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.ResetPasswordParams
			users := &mockUserService{
				ResetPasswordFunc: func(ctx context.Context, params domain.ResetPasswordParams) error {
					got = params
					return tt.serviceErr
				},
			}
			h := newTestAuthHandler(users, nil)

			rec := httptest.NewRecorder()
			h.ResetPassword(rec, httptest.NewRequest("POST", "/api/auth/reset-password", jsonBody(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, domain.ResetPasswordParams{Token: token, NewPassword: "Lanyard42"}, got)
			}
		})
	}
}

func TestAuthHandler_RegisterRoutes_ResetLimited(t *testing.T) {
	var limited []string
	limit := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				limited = append(limited, name+" "+r.URL.Path)
				next.ServeHTTP(w, r)
			})
		}
	}
	users := &mockUserService{
		ResetPasswordFunc: func(ctx context.Context, params domain.ResetPasswordParams) error { return nil },
	}
	h := newTestAuthHandler(users, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, requireUserPassthrough, AuthLimits{
		Login:         limit("login"),
		Register:      limit("register"),
		PasswordReset: limit("reset"),
	})

	for _, path := range []string{"/api/auth/forgot-password", "/api/auth/reset-password"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", path, jsonBody(`{"email":"a@example.com","token":"t","password":"Lanyard42"}`)))
	}
	h.WaitForMail()

	assert.Equal(t, []string{"reset /api/auth/forgot-password", "reset /api/auth/reset-password"}, limited)
}
