package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/billing"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// =============================================================================
// Mock UserService
// =============================================================================

type mockUserService struct {
	RegisterFunc              func(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error)
	LoginFunc                 func(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error)
	LogoutFunc                func(ctx context.Context, token string) error
	CreateResetTokenFunc      func(ctx context.Context, email string) (*domain.PasswordResetResult, error)
	ResetPasswordFunc         func(ctx context.Context, params domain.ResetPasswordParams) error
	UpdateStripeCustomerFunc  func(ctx context.Context, userID uuid.UUID, customerID string) error
	ApplySubscriptionFunc     func(ctx context.Context, update domain.SubscriptionUpdate) error
	GetByStripeCustomerIDFunc func(ctx context.Context, customerID string) (*domain.User, error)
}

func (m *mockUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Login(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, domain.NotFound("mock", "user", id.String())
}

func (m *mockUserService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	return nil, domain.Unauthorized("mock", "invalid credential")
}

func (m *mockUserService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockUserService) CreatePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetResult, error) {
	if m.CreateResetTokenFunc != nil {
		return m.CreateResetTokenFunc(ctx, email)
	}
	return nil, domain.NotFound("mock", "user", email)
}

func (m *mockUserService) ResetPassword(ctx context.Context, params domain.ResetPasswordParams) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, params)
	}
	return errors.New("not implemented")
}

func (m *mockUserService) DeleteExpiredPasswordResetTokens(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockUserService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	if m.UpdateStripeCustomerFunc != nil {
		return m.UpdateStripeCustomerFunc(ctx, userID, customerID)
	}
	return nil
}

func (m *mockUserService) ApplySubscription(ctx context.Context, update domain.SubscriptionUpdate) error {
	if m.ApplySubscriptionFunc != nil {
		return m.ApplySubscriptionFunc(ctx, update)
	}
	return nil
}

func (m *mockUserService) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	if m.GetByStripeCustomerIDFunc != nil {
		return m.GetByStripeCustomerIDFunc(ctx, customerID)
	}
	return nil, domain.NotFound("mock", "user", customerID)
}

var _ service.UserService = (*mockUserService)(nil)

// =============================================================================
// Mock ChatService
// =============================================================================

type mockChatService struct {
	AskFunc    func(ctx context.Context, user *domain.User, q service.Question) (*service.ChatReply, error)
	StreamFunc func(ctx context.Context, user *domain.User, q service.Question, onDelta func(string) error) (*service.ChatReply, error)
}

func (m *mockChatService) Ask(ctx context.Context, user *domain.User, q service.Question) (*service.ChatReply, error) {
	return m.AskFunc(ctx, user, q)
}

func (m *mockChatService) Stream(ctx context.Context, user *domain.User, q service.Question, onDelta func(string) error) (*service.ChatReply, error) {
	return m.StreamFunc(ctx, user, q, onDelta)
}

var _ service.ChatService = (*mockChatService)(nil)

// =============================================================================
// Mock TranscriptService
// =============================================================================

type mockTranscriptService struct {
	LoadFunc  func(ctx context.Context, userID uuid.UUID) (*domain.Transcript, error)
	ClearFunc func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockTranscriptService) Load(ctx context.Context, userID uuid.UUID) (*domain.Transcript, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, userID)
	}
	return &domain.Transcript{}, nil
}

func (m *mockTranscriptService) Append(ctx context.Context, userID uuid.UUID, turns ...domain.ConversationTurn) error {
	return nil
}

func (m *mockTranscriptService) Clear(ctx context.Context, userID uuid.UUID) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, userID)
	}
	return nil
}

var _ service.TranscriptService = (*mockTranscriptService)(nil)

// =============================================================================
// Mock UsageService
// =============================================================================

type mockUsageService struct {
	SnapshotFunc func(ctx context.Context, user *domain.User) (domain.UsageRecord, error)
}

func (m *mockUsageService) Snapshot(ctx context.Context, user *domain.User) (domain.UsageRecord, error) {
	return m.SnapshotFunc(ctx, user)
}

func (m *mockUsageService) Reserve(ctx context.Context, user *domain.User) (*service.Reservation, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUsageService) Release(ctx context.Context, r *service.Reservation) error {
	return nil
}

func (m *mockUsageService) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

var _ service.UsageService = (*mockUsageService)(nil)

// =============================================================================
// Mock billing.Service
// =============================================================================

type mockBilling struct {
	CreateCustomerFunc        func(ctx context.Context, email, name, userID string) (string, error)
	CreateCheckoutSessionFunc func(ctx context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error)
	CreatePortalSessionFunc   func(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscriptionFunc       func(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	VerifyWebhookFunc         func(payload []byte, signature string) (stripe.Event, error)
	Plans                     map[string]domain.Plan
}

func (m *mockBilling) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, email, name, userID)
	}
	return "cus_test", nil
}

func (m *mockBilling) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	return &billing.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.com/c/pay/cs_test"}, nil
}

func (m *mockBilling) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if m.CreatePortalSessionFunc != nil {
		return m.CreatePortalSessionFunc(ctx, customerID, returnURL)
	}
	return "https://billing.stripe.com/p/session/test", nil
}

func (m *mockBilling) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, subscriptionID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if m.VerifyWebhookFunc != nil {
		return m.VerifyWebhookFunc(payload, signature)
	}
	return stripe.Event{}, errors.New("bad signature")
}

func (m *mockBilling) PlanForPriceID(priceID string) domain.Plan {
	return m.Plans[priceID]
}

var _ billing.Service = (*mockBilling)(nil)

// =============================================================================
// Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser() *domain.User {
	return &domain.User{
		ID:    uuid.New(),
		Email: "worker@example.com",
		Name:  "Sam Worker",
		Role:  domain.RoleUser,
		Plan:  domain.PlanStarter,
	}
}

// withUser attaches an authenticated user to the request the way
// AuthMiddleware.WithUser does.
func withUser(r *http.Request, u *domain.User) *http.Request {
	ctx := auth.SetUser(r.Context(), u)
	ctx = auth.SetToken(ctx, "token-"+u.ID.String())
	return r.WithContext(ctx)
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func requireUserPassthrough(next http.Handler) http.Handler { return next }
