// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode"

	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sqlc-dev/pqtype"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// This should NOT be configurable at runtime to prevent accidental
	// weakening.
	BcryptCost = 12

	// DefaultSessionDuration is how long a session remains valid.
	DefaultSessionDuration = 7 * 24 * time.Hour

	minSessionDuration = 15 * time.Minute
	maxSessionDuration = 30 * 24 * time.Hour

	// MinPasswordLength is the minimum password length (NIST SP 800-63B).
	MinPasswordLength = 8

	// MaxPasswordLength matches the bcrypt input limit.
	MaxPasswordLength = 72

	// pgUniqueViolation is the SQLSTATE for unique constraint violations.
	pgUniqueViolation = "23505"
)

// dummyHash keeps login timing constant for unknown emails.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines account and session operations.
type UserService interface {
	// Register creates an account on the starter plan, starts its trial and
	// signs the new subscriber in.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error)

	// Login authenticates a subscriber and creates a new session.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error)

	// Logout revokes the session behind a bearer credential.
	// This is idempotent - an invalid credential is not an error.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// Authenticate resolves a bearer credential to its user.
	// Returns domain.EUNAUTHORIZED if the credential is invalid, expired or
	// revoked.
	Authenticate(ctx context.Context, token string) (*domain.User, error)

	// DeleteExpiredSessions removes expired sessions and returns how many
	// were deleted.
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// =========================================================================
	// Password Reset Methods
	// =========================================================================

	// CreatePasswordResetToken issues a one-hour reset token for the account
	// with the given email, replacing any earlier one.
	// Returns domain.ENOTFOUND if no account has the email. Callers must not
	// reveal that to the requester.
	CreatePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetResult, error)

	// ResetPassword consumes a reset token, sets the new password and signs
	// the account out everywhere.
	// Returns domain.EINVALID for a malformed token or weak password.
	// Returns domain.ENOTFOUND if the token is unknown, used or expired.
	ResetPassword(ctx context.Context, params domain.ResetPasswordParams) error

	// DeleteExpiredPasswordResetTokens removes expired and used tokens and
	// returns how many were deleted.
	DeleteExpiredPasswordResetTokens(ctx context.Context) (int64, error)

	// =========================================================================
	// Billing Methods
	// =========================================================================

	// UpdateStripeCustomer saves the Stripe customer ID for a user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// ApplySubscription records subscription state received from billing.
	// Returns domain.ENOTFOUND if no user has the customer ID.
	ApplySubscription(ctx context.Context, update domain.SubscriptionUpdate) error

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)
}

// UserStore is the subset of repository queries the user service needs.
type UserStore interface {
	CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (repository.User, error)
	UpdateUserStripeCustomer(ctx context.Context, arg repository.UpdateUserStripeCustomerParams) error
	UpdateUserSubscription(ctx context.Context, arg repository.UpdateUserSubscriptionParams) (int64, error)
	CreateSession(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error)
	GetActiveSession(ctx context.Context, id uuid.UUID) (repository.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
	UpdateUserPassword(ctx context.Context, arg repository.UpdateUserPasswordParams) error
	CreatePasswordResetToken(ctx context.Context, arg repository.CreatePasswordResetTokenParams) (repository.PasswordResetToken, error)
	ConsumePasswordResetToken(ctx context.Context, tokenHash string) (repository.PasswordResetToken, error)
	DeleteUserPasswordResetTokens(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredPasswordResetTokens(ctx context.Context) (int64, error)
}

var _ UserStore = (*repository.Queries)(nil)

// UserServiceConfig holds account settings.
type UserServiceConfig struct {
	SessionDuration time.Duration
	TrialDays       int
	AdminEmails     []string
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	store           UserStore
	tokens          *auth.TokenIssuer
	sessionDuration time.Duration
	trialDays       int
	adminEmails     map[string]struct{}
	logger          *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore, tokens *auth.TokenIssuer, cfg UserServiceConfig, logger *slog.Logger) UserService {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &userService{
		store:           store,
		tokens:          tokens,
		sessionDuration: normalizeSessionDuration(cfg.SessionDuration),
		trialDays:       cfg.TrialDays,
		adminEmails:     admins,
		logger:          logger,
	}
}

// =============================================================================
// Register Implementation
// =============================================================================

func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error) {
	const op = "UserService.Register"

	params.Email = normalizeEmail(params.Email)
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}
	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	// Check for an existing account. Hash anyway so the response time does
	// not reveal which emails are registered.
	_, err := s.store.GetUserByEmail(ctx, params.Email)
	if err == nil {
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	role := domain.RoleUser
	if _, ok := s.adminEmails[params.Email]; ok {
		role = domain.RoleAdmin
	}

	repoUser, err := s.store.CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
		Role:         string(role),
		Plan:         string(domain.PlanStarter),
		TrialDays:    sql.NullInt32{Int32: int32(s.trialDays), Valid: true},
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role, "trial_days", s.trialDays)

	return s.startSession(ctx, op, user, params.IPAddress, params.UserAgent)
}

// =============================================================================
// Login Implementation
// =============================================================================

func (s *userService) Login(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email := normalizeEmail(params.Email)

	repoUser, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(params.Password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(params.Password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	user := repoUserToDomain(repoUser)
	if user.Disabled {
		return nil, domain.Forbidden(op, "This account has been disabled")
	}

	result, err := s.startSession(ctx, op, user, params.IPAddress, params.UserAgent)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return result, nil
}

// startSession persists a session and signs a bearer credential for it.
func (s *userService) startSession(ctx context.Context, op string, user *domain.User, ip, userAgent string) (*domain.LoginResult, error) {
	session, err := s.store.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    user.ID,
		IpAddress: toInet(ip),
		UserAgent: domain.ToNullString(userAgent),
		ExpiresAt: time.Now().Add(s.sessionDuration),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, session.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to issue credential")
	}
	if session.ExpiresAt.Before(expiresAt) {
		expiresAt = session.ExpiresAt
	}

	user.PasswordHash = ""
	return &domain.LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// =============================================================================
// Logout / Authenticate Implementation
// =============================================================================

func (s *userService) Logout(ctx context.Context, token string) error {
	_, sessionID, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to delete session", "session_id", sessionID, "error", err)
	}
	s.logger.Debug("session revoked", "session_id", sessionID)
	return nil
}

func (s *userService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.Authenticate"

	userID, sessionID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.Wrap(err, domain.EUNAUTHORIZED, op, "Invalid or expired session")
	}

	session, err := s.store.GetActiveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}
	if session.UserID != userID {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	repoUser, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const op = "UserService.DeleteExpiredSessions"

	n, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to delete expired sessions")
	}
	if n > 0 {
		s.logger.Info("expired sessions cleaned up", "count", n)
	}
	return n, nil
}

// =============================================================================
// Password Reset Implementation
// =============================================================================

// CreatePasswordResetToken stores only the SHA-256 hash of the token. The
// raw value goes out once, in the reset email.
func (s *userService) CreatePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetResult, error) {
	const op = "UserService.CreatePasswordResetToken"

	email = normalizeEmail(email)
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	if user.Disabled {
		return nil, domain.NotFound(op, "user", email)
	}

	if err := s.store.DeleteUserPasswordResetTokens(ctx, user.ID); err != nil {
		return nil, domain.Internal(err, op, "Failed to delete existing tokens")
	}

	rawToken, err := generateResetToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate token")
	}

	expiresAt := time.Now().Add(domain.PasswordResetTokenDuration)
	if _, err := s.store.CreatePasswordResetToken(ctx, repository.CreatePasswordResetTokenParams{
		UserID:    user.ID,
		TokenHash: hashResetToken(rawToken),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, domain.Internal(err, op, "Failed to create password reset token")
	}

	s.logger.Info("password reset token created", "user_id", user.ID)

	return &domain.PasswordResetResult{
		Token:     rawToken,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
	}, nil
}

// ResetPassword validates the new password before touching the token, so a
// rejected password leaves the token usable.
func (s *userService) ResetPassword(ctx context.Context, params domain.ResetPasswordParams) error {
	const op = "UserService.ResetPassword"

	if len(params.Token) != 2*domain.ResetTokenBytes {
		return domain.Invalid(op, "Invalid reset token")
	}
	if err := validatePassword(params.NewPassword); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash new password")
	}

	resetToken, err := s.store.ConsumePasswordResetToken(ctx, hashResetToken(params.Token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "reset token", "")
		}
		return domain.Internal(err, op, "Failed to retrieve reset token")
	}

	if err := s.store.UpdateUserPassword(ctx, repository.UpdateUserPasswordParams{
		ID:           resetToken.UserID,
		PasswordHash: string(passwordHash),
	}); err != nil {
		return domain.Internal(err, op, "Failed to update password")
	}

	if err := s.store.DeleteUserSessions(ctx, resetToken.UserID); err != nil {
		s.logger.Warn("failed to delete user sessions after password reset", "error", err, "user_id", resetToken.UserID)
	}

	s.logger.Info("password reset completed", "user_id", resetToken.UserID)
	return nil
}

func (s *userService) DeleteExpiredPasswordResetTokens(ctx context.Context) (int64, error) {
	const op = "UserService.DeleteExpiredPasswordResetTokens"

	n, err := s.store.DeleteExpiredPasswordResetTokens(ctx)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to delete expired tokens")
	}
	if n > 0 {
		s.logger.Info("expired password reset tokens cleaned up", "count", n)
	}
	return n, nil
}

func generateResetToken() (string, error) {
	b := make([]byte, domain.ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// Billing Methods Implementation
// =============================================================================

func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.UpdateStripeCustomer"

	err := s.store.UpdateUserStripeCustomer(ctx, repository.UpdateUserStripeCustomerParams{
		ID:               userID,
		StripeCustomerID: domain.ToNullString(stripeCustomerID),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update Stripe customer ID")
	}

	s.logger.Info("stripe customer ID updated", "user_id", userID, "stripe_customer_id", stripeCustomerID)
	return nil
}

func (s *userService) ApplySubscription(ctx context.Context, update domain.SubscriptionUpdate) error {
	const op = "UserService.ApplySubscription"

	if update.CustomerID == "" {
		return domain.Invalid(op, "customer ID is required")
	}
	if !update.Plan.Valid() {
		return domain.Invalid(op, "unknown plan")
	}

	n, err := s.store.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
		StripeCustomerID:   domain.ToNullString(update.CustomerID),
		Plan:               string(update.Plan),
		SubscriptionID:     domain.ToNullString(update.SubscriptionID),
		SubscriptionStatus: string(update.Status),
		CurrentPeriodEnd:   domain.ToNullTime(update.CurrentPeriodEnd),
		CancelAtPeriodEnd:  update.CancelAtPeriodEnd,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update subscription")
	}
	if n == 0 {
		return domain.NotFound(op, "customer", update.CustomerID)
	}

	s.logger.Info("subscription updated",
		"stripe_customer_id", update.CustomerID,
		"plan", update.Plan,
		"status", update.Status,
	)
	return nil
}

func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	repoUser, err := s.store.GetUserByStripeCustomerID(ctx, domain.ToNullString(stripeCustomerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user by Stripe customer ID")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// normalizeSessionDuration clamps the configured duration to 15 minutes..30 days.
func normalizeSessionDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSessionDuration
	case d < minSessionDuration:
		return minSessionDuration
	case d > maxSessionDuration:
		return maxSessionDuration
	}
	return d
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// toInet converts a client IP to an inet value; unparseable input is NULL.
func toInet(ip string) pqtype.Inet {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return pqtype.Inet{}
	}
	bits := 128
	if v4 := parsed.To4(); v4 != nil {
		parsed, bits = v4, 32
	}
	return pqtype.Inet{
		IPNet: net.IPNet{IP: parsed, Mask: net.CIDRMask(bits, bits)},
		Valid: true,
	}
}

// repoUserToDomain converts a repository.User to domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:                 u.ID,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Name:               u.Name,
		Role:               domain.Role(u.Role),
		Plan:               domain.Plan(u.Plan),
		StripeCustomerID:   domain.NullStringValue(u.StripeCustomerID),
		SubscriptionID:     domain.NullStringValue(u.SubscriptionID),
		SubscriptionStatus: domain.SubscriptionStatus(u.SubscriptionStatus),
		CurrentPeriodEnd:   domain.NullTimeValue(u.CurrentPeriodEnd),
		CancelAtPeriodEnd:  u.CancelAtPeriodEnd,
		TrialStartedAt:     u.TrialStartedAt,
		TrialDays:          domain.NullInt32Value(u.TrialDays),
		Disabled:           u.Disabled,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// validateEmail performs a structural check; the handler has already applied
// RFC 5322 validation to request bodies.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.Count(email, "@") != 1 {
		return domain.Invalid("", "Email must contain exactly one @ symbol")
	}
	if !strings.Contains(email[at+1:], ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}
	return nil
}

// commonPasswords are rejected even when they satisfy the other rules.
var commonPasswords = map[string]struct{}{
	"password1": {}, "password123": {}, "qwerty123": {}, "letmein1": {},
	"welcome1": {}, "admin123": {}, "abc12345": {}, "iloveyou1": {},
	"12345678a": {}, "passw0rd": {}, "safety123": {}, "changeme1": {},
}

// validatePassword enforces length, character mix and the common password list.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}

	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		return domain.Invalid("", "Password must contain at least one letter")
	}
	if !hasNumber {
		return domain.Invalid("", "Password must contain at least one number")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return domain.Invalid("", "Password is too common, please choose another")
	}
	return nil
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ UserService = (*userService)(nil)
