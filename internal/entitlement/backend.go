package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/go-playground/validator/v10"
)

// TrialDataPath is the usage snapshot endpoint on the backend of record.
const TrialDataPath = "/api/user/trial-data"

// maxSnapshotBody bounds the snapshot response body.
const maxSnapshotBody = 16 << 10

// BackendSource fetches snapshots from the backend of record.
type BackendSource struct {
	endpoint string
	client   *http.Client
	validate *validator.Validate
	logger   *slog.Logger
}

// NewBackendSource creates a BackendSource for the API at baseURL. A nil
// client uses http.DefaultClient; the caller bounds each fetch through its
// context.
func NewBackendSource(baseURL string, client *http.Client, logger *slog.Logger) *BackendSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &BackendSource{
		endpoint: strings.TrimRight(baseURL, "/") + TrialDataPath,
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// snapshotBody is the wire shape of a snapshot. Pointer fields let the
// validator tell a missing field from a zero value.
type snapshotBody struct {
	Plan               *string    `json:"plan" validate:"required,oneof=free starter professional admin enterprise"`
	ChatsUsedToday     *int       `json:"chatsUsedToday" validate:"required,min=0"`
	DailyLimit         *int       `json:"dailyLimit" validate:"required,min=0"`
	TrialDaysRemaining *int       `json:"trialDaysRemaining" validate:"required,min=-1"`
	IsActive           *bool      `json:"isActive" validate:"required"`
	IsUnlimited        *bool      `json:"isUnlimited" validate:"required"`
	FetchedAt          *time.Time `json:"fetchedAt"`
}

// Fetch implements Source.
func (s *BackendSource) Fetch(ctx context.Context, req Request) Outcome {
	if req.Credential == "" {
		return AuthFailure{Err: ErrNoCredential}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return ConnectivityFailure{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return ConnectivityFailure{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp.Body)
		return AuthFailure{Err: fmt.Errorf("usage endpoint rejected credential: %s", resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		drain(resp.Body)
		return ConnectivityFailure{Err: fmt.Errorf("usage endpoint returned %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBody+1))
	if err != nil {
		return ConnectivityFailure{Err: fmt.Errorf("read snapshot: %w", err)}
	}
	if len(data) > maxSnapshotBody {
		return MalformedResponse{Err: fmt.Errorf("snapshot body exceeds %d bytes", maxSnapshotBody)}
	}

	record, err := s.decode(data)
	if err != nil {
		s.logger.Warn("rejected usage snapshot", "error", err)
		return MalformedResponse{Err: err}
	}
	return Success{Record: record}
}

func (s *BackendSource) decode(data []byte) (domain.UsageRecord, error) {
	var body snapshotBody
	if err := json.Unmarshal(data, &body); err != nil {
		return domain.UsageRecord{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.validate.Struct(body); err != nil {
		return domain.UsageRecord{}, fmt.Errorf("validate snapshot: %w", err)
	}
	plan, err := domain.ParsePlan(*body.Plan)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("validate snapshot: %w", err)
	}

	record := domain.UsageRecord{
		Plan:               plan,
		ChatsUsedToday:     *body.ChatsUsedToday,
		DailyLimit:         *body.DailyLimit,
		TrialDaysRemaining: *body.TrialDaysRemaining,
		IsActive:           *body.IsActive,
		IsUnlimited:        *body.IsUnlimited,
	}
	if body.FetchedAt != nil {
		record.FetchedAt = body.FetchedAt.UTC()
	}
	return record, nil
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxSnapshotBody))
}
