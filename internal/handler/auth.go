// Package handler contains the HTTP handlers of the Ohscentric API.
//
// This file implements the authentication endpoints. Credentials are bearer
// tokens returned in the response body; the client stores them and sends
// them in the Authorization header.
//
// Routes handled:
//   - POST /api/auth/register -> Register
//   - POST /api/auth/login    -> Login
//   - GET  /api/auth/verify   -> Verify
//   - POST /api/auth/logout   -> Logout
//   - POST /api/auth/forgot-password -> ForgotPassword
//   - POST /api/auth/reset-password  -> ResetPassword
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/email"
	"github.com/DukeRupert/ohscentric/internal/service"
	"github.com/go-playground/validator/v10"
)

// LoginAttempts tracks failed logins per client IP.
type LoginAttempts interface {
	RecordFailedLogin(ip string)
	ResetLogin(ip string)
}

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	userService service.UserService
	attempts    LoginAttempts
	mailer      email.Sender
	validate    *validator.Validate
	logger      *slog.Logger

	// mailWG tracks reset emails still being sent.
	mailWG sync.WaitGroup
}

// NewAuthHandler creates a new AuthHandler. attempts may be nil.
func NewAuthHandler(userService service.UserService, attempts LoginAttempts, mailer email.Sender, validate *validator.Validate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		attempts:    attempts,
		mailer:      mailer,
		validate:    validate,
		logger:      logger,
	}
}

// AuthLimits wraps the abuse-prone auth endpoints.
type AuthLimits struct {
	Login         func(http.Handler) http.Handler
	Register      func(http.Handler) http.Handler
	PasswordReset func(http.Handler) http.Handler
}

// RegisterRoutes registers the auth routes behind their rate limiters.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler, limits AuthLimits) {
	mux.Handle("POST /api/auth/register", limits.Register(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", limits.Login(http.HandlerFunc(h.Login)))
	mux.Handle("GET /api/auth/verify", requireUser(http.HandlerFunc(h.Verify)))
	mux.Handle("POST /api/auth/logout", requireUser(http.HandlerFunc(h.Logout)))
	mux.Handle("POST /api/auth/forgot-password", limits.PasswordReset(http.HandlerFunc(h.ForgotPassword)))
	mux.Handle("POST /api/auth/reset-password", limits.PasswordReset(http.HandlerFunc(h.ResetPassword)))
}

// WaitForMail blocks until reset emails already queued have been sent or
// have failed.
func (h *AuthHandler) WaitForMail() {
	h.mailWG.Wait()
}

// =============================================================================
// Request / Response types
// =============================================================================

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// forgotPasswordMessage is returned whether or not the email has an account.
const forgotPasswordMessage = "If an account exists for that email, a reset token is on its way."

// UserResponse is the public view of a subscriber.
type UserResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID.String(),
		Email:              u.Email,
		Name:               u.DisplayName(),
		Role:               string(u.Role),
		Plan:               string(u.EffectivePlan()),
		SubscriptionStatus: string(u.SubscriptionStatus),
	}
}

// =============================================================================
// Handlers
// =============================================================================

// Register creates an account, starts the trial and signs the user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Register"

	var req registerRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		User:      toUserResponse(result.User),
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Login exchanges email and password for a bearer credential.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Login"

	var req loginRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	ip := clientIP(r)
	result, err := h.userService.Login(r.Context(), domain.LoginParams{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if h.attempts != nil && domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			h.attempts.RecordFailedLogin(ip)
		}
		respondError(w, r, h.logger, err)
		return
	}
	if h.attempts != nil {
		h.attempts.ResetLogin(ip)
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		User:      toUserResponse(result.User),
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Verify returns the user the bearer credential belongs to.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]UserResponse{"user": toUserResponse(user)})
}

// Logout revokes the session behind the bearer credential.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.GetToken(r.Context())
	if token == "" {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if err := h.userService.Logout(r.Context(), token); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForgotPassword emails a reset token when the address belongs to an
// account. The response is the same either way.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.ForgotPassword"

	var req forgotPasswordRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.userService.CreatePasswordResetToken(r.Context(), req.Email)
	switch {
	case err == nil:
		h.mailWG.Add(1)
		go func() {
			defer h.mailWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := h.mailer.SendPasswordResetEmail(ctx, result.Email, result.Name, result.Token); err != nil {
				h.logger.Error("failed to send password reset email", "error", err, "user_id", result.UserID)
				return
			}
			h.logger.Info("password reset email sent", "user_id", result.UserID)
		}()
	case domain.ErrorCode(err) == domain.ENOTFOUND:
		h.logger.Debug("password reset requested for unknown email")
	default:
		h.logger.Error("password reset token creation failed", "error", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"message": forgotPasswordMessage})
}

// ResetPassword redeems a reset token for a new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.ResetPassword"

	var req resetPasswordRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.userService.ResetPassword(r.Context(), domain.ResetPasswordParams{
		Token:       req.Token,
		NewPassword: req.Password,
	}); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
