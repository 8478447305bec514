package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memUserStore is an in-memory UserStore.
type memUserStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]repository.User
	sessions map[uuid.UUID]repository.Session
	resets   map[string]repository.PasswordResetToken

	createErr error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:    make(map[uuid.UUID]repository.User),
		sessions: make(map[uuid.UUID]repository.Session),
		resets:   make(map[string]repository.PasswordResetToken),
	}
}

func (m *memUserStore) CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return repository.User{}, m.createErr
	}
	now := time.Now()
	u := repository.User{
		ID:             uuid.New(),
		Email:          arg.Email,
		PasswordHash:   arg.PasswordHash,
		Name:           arg.Name,
		Role:           arg.Role,
		Plan:           arg.Plan,
		TrialStartedAt: now,
		TrialDays:      arg.TrialDays,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memUserStore) GetUserByEmail(ctx context.Context, email string) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *memUserStore) GetUserByStripeCustomerID(ctx context.Context, id sql.NullString) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.StripeCustomerID.Valid && u.StripeCustomerID.String == id.String {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *memUserStore) UpdateUserStripeCustomer(ctx context.Context, arg repository.UpdateUserStripeCustomerParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[arg.ID]
	u.StripeCustomerID = arg.StripeCustomerID
	m.users[arg.ID] = u
	return nil
}

func (m *memUserStore) UpdateUserSubscription(ctx context.Context, arg repository.UpdateUserSubscriptionParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.StripeCustomerID == arg.StripeCustomerID {
			u.Plan = arg.Plan
			u.SubscriptionID = arg.SubscriptionID
			u.SubscriptionStatus = arg.SubscriptionStatus
			u.CurrentPeriodEnd = arg.CurrentPeriodEnd
			u.CancelAtPeriodEnd = arg.CancelAtPeriodEnd
			m.users[id] = u
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memUserStore) CreateSession(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := repository.Session{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		IpAddress: arg.IpAddress,
		UserAgent: arg.UserAgent,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: time.Now(),
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memUserStore) GetActiveSession(ctx context.Context, id uuid.UUID) (repository.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return repository.Session{}, sql.ErrNoRows
	}
	return s, nil
}

func (m *memUserStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memUserStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if time.Now().After(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memUserStore) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memUserStore) UpdateUserPassword(ctx context.Context, arg repository.UpdateUserPasswordParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[arg.ID]
	u.PasswordHash = arg.PasswordHash
	m.users[arg.ID] = u
	return nil
}

func (m *memUserStore) CreatePasswordResetToken(ctx context.Context, arg repository.CreatePasswordResetTokenParams) (repository.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := repository.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		TokenHash: arg.TokenHash,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: time.Now(),
	}
	m.resets[arg.TokenHash] = t
	return t, nil
}

func (m *memUserStore) ConsumePasswordResetToken(ctx context.Context, tokenHash string) (repository.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resets[tokenHash]
	if !ok || t.UsedAt.Valid || !time.Now().Before(t.ExpiresAt) {
		return repository.PasswordResetToken{}, sql.ErrNoRows
	}
	t.UsedAt = sql.NullTime{Time: time.Now(), Valid: true}
	m.resets[tokenHash] = t
	return t, nil
}

func (m *memUserStore) DeleteUserPasswordResetTokens(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, t := range m.resets {
		if t.UserID == userID {
			delete(m.resets, h)
		}
	}
	return nil
}

func (m *memUserStore) DeleteExpiredPasswordResetTokens(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for h, t := range m.resets {
		if t.UsedAt.Valid || !time.Now().Before(t.ExpiresAt) {
			delete(m.resets, h)
			n++
		}
	}
	return n, nil
}

var _ UserStore = (*memUserStore)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUserService(t *testing.T, store UserStore) UserService {
	t.Helper()
	tokens, err := auth.NewTokenIssuer(strings.Repeat("k", 32), "ohscentric-test", time.Hour)
	require.NoError(t, err)
	return NewUserService(store, tokens, UserServiceConfig{
		TrialDays:   3,
		AdminEmails: []string{"Boss@Example.com"},
	}, testLogger())
}

func TestRegisterStartsTrialAndSession(t *testing.T) {
	store := newMemUserStore()
	svc := newTestUserService(t, store)
	ctx := context.Background()

	result, err := svc.Register(ctx, domain.RegisterParams{
		Email:     "  Owner@Example.com ",
		Password:  "Scaff0lding",
		Name:      "Pat",
		IPAddress: "203.0.113.9",
	})
	require.NoError(t, err)

	assert.Equal(t, "owner@example.com", result.User.Email)
	assert.Equal(t, domain.PlanStarter, result.User.Plan)
	assert.Equal(t, domain.RoleUser, result.User.Role)
	require.NotNil(t, result.User.TrialDays)
	assert.Equal(t, 3, *result.User.TrialDays)
	assert.Empty(t, result.User.PasswordHash)
	assert.NotEmpty(t, result.Token)

	user, err := svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)
}

func TestRegisterAdminEmail(t *testing.T) {
	svc := newTestUserService(t, newMemUserStore())

	result, err := svc.Register(context.Background(), domain.RegisterParams{
		Email: "boss@example.com", Password: "Scaff0lding", Name: "Boss",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, result.User.Role)
	assert.Equal(t, domain.PlanAdmin, result.User.EffectivePlan())
}

func TestRegisterErrors(t *testing.T) {
	store := newMemUserStore()
	svc := newTestUserService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterParams{Email: "dup@example.com", Password: "Scaff0lding", Name: "A"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		params   domain.RegisterParams
		wantCode string
	}{
		{name: "duplicate", params: domain.RegisterParams{Email: "DUP@example.com", Password: "Scaff0lding", Name: "B"}, wantCode: domain.ECONFLICT},
		{name: "bad email", params: domain.RegisterParams{Email: "nope", Password: "Scaff0lding", Name: "B"}, wantCode: domain.EINVALID},
		{name: "weak password", params: domain.RegisterParams{Email: "b@example.com", Password: "short", Name: "B"}, wantCode: domain.EINVALID},
		{name: "missing name", params: domain.RegisterParams{Email: "b@example.com", Password: "Scaff0lding"}, wantCode: domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.params)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}
}

func TestRegisterUniqueViolationIsConflict(t *testing.T) {
	store := newMemUserStore()
	store.createErr = &pgconn.PgError{Code: pgUniqueViolation}
	svc := newTestUserService(t, store)

	_, err := svc.Register(context.Background(), domain.RegisterParams{Email: "race@example.com", Password: "Scaff0lding", Name: "R"})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestLoginAndLogout(t *testing.T) {
	store := newMemUserStore()
	svc := newTestUserService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterParams{Email: "pat@example.com", Password: "Scaff0lding", Name: "Pat"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginParams{Email: "pat@example.com", Password: "wrong-pass1"})
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))

	_, err = svc.Login(ctx, domain.LoginParams{Email: "nobody@example.com", Password: "Scaff0lding"})
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))

	result, err := svc.Login(ctx, domain.LoginParams{Email: "PAT@example.com", Password: "Scaff0lding"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.Token))
	_, err = svc.Authenticate(ctx, result.Token)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))

	// Logout is idempotent and ignores garbage
	assert.NoError(t, svc.Logout(ctx, result.Token))
	assert.NoError(t, svc.Logout(ctx, "garbage"))
}

func TestLoginDisabledAccount(t *testing.T) {
	store := newMemUserStore()
	svc := newTestUserService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, domain.RegisterParams{Email: "off@example.com", Password: "Scaff0lding", Name: "Off"})
	require.NoError(t, err)

	u := store.users[reg.User.ID]
	u.Disabled = true
	store.users[reg.User.ID] = u

	_, err = svc.Login(ctx, domain.LoginParams{Email: "off@example.com", Password: "Scaff0lding"})
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func TestApplySubscription(t *testing.T) {
	store := newMemUserStore()
	svc := newTestUserService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, domain.RegisterParams{Email: "pro@example.com", Password: "Scaff0lding", Name: "Pro"})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStripeCustomer(ctx, reg.User.ID, "cus_123"))

	end := time.Now().Add(30 * 24 * time.Hour)
	err = svc.ApplySubscription(ctx, domain.SubscriptionUpdate{
		CustomerID:       "cus_123",
		SubscriptionID:   "sub_1",
		Status:           domain.SubscriptionStatusActive,
		Plan:             domain.PlanProfessional,
		CurrentPeriodEnd: &end,
	})
	require.NoError(t, err)

	user, err := svc.GetByStripeCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanProfessional, user.Plan)
	assert.True(t, user.HasActiveSubscription())

	err = svc.ApplySubscription(ctx, domain.SubscriptionUpdate{CustomerID: "cus_unknown", Status: domain.SubscriptionStatusActive, Plan: domain.PlanProfessional})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
