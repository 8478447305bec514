// Package client talks to the Ohscentric API on behalf of the assistant CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/resources"
)

// DefaultTimeout bounds non-streaming API calls.
const DefaultTimeout = 30 * time.Second

// APIError is an error response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d (%s)", e.Status, e.Code)
	}
	return e.Message
}

// ErrorCode returns the API error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Client calls the API with the stored credential.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	creds   *CredentialStore
	logger  *slog.Logger
}

// New creates a Client for the API at baseURL.
func New(baseURL string, creds *CredentialStore, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		// Streams are bounded by the caller's context only.
		stream: &http.Client{},
		creds:  creds,
		logger: logger,
	}
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// =============================================================================
// Request / Response types
// =============================================================================

// User is the API's view of the signed-in subscriber.
type User struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

type authResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Answer is a reply to a question.
type Answer struct {
	Answer  string              `json:"answer"`
	Sources []string            `json:"sources"`
	Usage   *domain.UsageRecord `json:"usage,omitempty"`
}

type queryRequest struct {
	Query       string                  `json:"query"`
	ChatHistory []domain.HistoryMessage `json:"chat_history,omitempty"`
}

// Checkout is a hosted checkout session.
type Checkout struct {
	URL       string `json:"checkout_url"`
	SessionID string `json:"session_id"`
}

// SubscriptionStatus describes the paid subscription.
type SubscriptionStatus struct {
	Plan              string     `json:"plan"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

// =============================================================================
// Auth
// =============================================================================

// Register creates an account and stores the returned credential.
func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	var resp authResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, false, &resp); err != nil {
		return nil, err
	}
	return c.signIn(resp)
}

// Login exchanges email and password for a credential and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, false, &resp); err != nil {
		return nil, err
	}
	return c.signIn(resp)
}

func (c *Client) signIn(resp authResponse) (*User, error) {
	if err := c.creds.Save(Credentials{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		UserID:    resp.User.ID,
		Email:     resp.User.Email,
		Name:      resp.User.Name,
	}); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout revokes the session and removes the stored credential. The local
// credential is removed even if the API call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, true, nil)
	if clearErr := c.creds.Clear(); clearErr != nil {
		return clearErr
	}
	if err != nil && ErrorCode(err) != domain.EUNAUTHORIZED && !errors.Is(err, ErrNotLoggedIn) {
		return err
	}
	return nil
}

// Verify returns the user the stored credential belongs to.
func (c *Client) Verify(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/verify", nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// ForgotPassword asks the API to email a reset token. The API answers the
// same whether or not the email has an account.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email}, false, nil)
}

// ResetPassword redeems a reset token. Every session of the account is
// revoked, so the stored credential is removed too.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "password": newPassword}
	if err := c.do(ctx, http.MethodPost, "/api/auth/reset-password", body, false, nil); err != nil {
		return err
	}
	return c.creds.Clear()
}

// =============================================================================
// Conversation
// =============================================================================

// History returns the stored transcript.
func (c *Client) History(ctx context.Context) (*domain.Transcript, error) {
	var t domain.Transcript
	if err := c.do(ctx, http.MethodGet, "/api/chat/history", nil, true, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ClearHistory deletes the stored transcript.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/history", nil, true, nil)
}

// =============================================================================
// Billing
// =============================================================================

// CreateCheckout starts a hosted checkout returning to the given URLs.
func (c *Client) CreateCheckout(ctx context.Context, successURL, cancelURL string) (*Checkout, error) {
	var resp Checkout
	body := map[string]string{"success_url": successURL, "cancel_url": cancelURL}
	if err := c.do(ctx, http.MethodPost, "/api/stripe/create-checkout", body, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreatePortal returns a customer portal URL.
func (c *Client) CreatePortal(ctx context.Context, returnURL string) (string, error) {
	var resp struct {
		URL string `json:"portal_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/stripe/create-portal", map[string]string{"return_url": returnURL}, true, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// SubscriptionStatus returns the paid subscription details.
func (c *Client) SubscriptionStatus(ctx context.Context) (*SubscriptionStatus, error) {
	var resp SubscriptionStatus
	if err := c.do(ctx, http.MethodGet, "/api/stripe/subscription-status", nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Resources
// =============================================================================

// Resources returns the legal resource directory, filtered by query.
func (c *Client) Resources(ctx context.Context, query string) ([]resources.Category, error) {
	path := "/api/resources"
	if query != "" {
		path += "?" + url.Values{"q": {query}}.Encode()
	}
	var resp struct {
		Categories []resources.Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body any, authed bool) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if authed {
		token, ok := c.creds.Credential()
		if !ok {
			return nil, ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, dst any) error {
	req, err := c.newRequest(ctx, method, path, body, authed)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeError converts a non-2xx response into an *APIError.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
		apiErr.Fields = body.Error.Fields
		return apiErr
	}

	apiErr.Code = codeForStatus(resp.StatusCode)
	apiErr.Message = http.StatusText(resp.StatusCode)
	return apiErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusPaymentRequired:
		return domain.EPAYMENT
	case http.StatusForbidden:
		return domain.EFORBIDDEN
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	case http.StatusTooManyRequests:
		return domain.ERATELIMIT
	case http.StatusNotImplemented:
		return domain.ENOTIMPL
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return domain.EUNAVAILABLE
	default:
		return domain.EINTERNAL
	}
}
