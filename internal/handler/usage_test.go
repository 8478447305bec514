package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageHandler_TrialData(t *testing.T) {
	user := testUser()
	usage := &mockUsageService{
		SnapshotFunc: func(ctx context.Context, u *domain.User) (domain.UsageRecord, error) {
			assert.Equal(t, user.ID, u.ID)
			return sampleUsage(), nil
		},
	}
	h := NewUsageHandler(usage, testLogger())

	rec := httptest.NewRecorder()
	h.TrialData(rec, withUser(httptest.NewRequest("GET", "/api/user/trial-data", nil), user))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	// The client validates all six fields, so the wire names matter.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"plan", "chatsUsedToday", "dailyLimit", "trialDaysRemaining", "isActive", "isUnlimited", "fetchedAt"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "starter", raw["plan"])
	assert.EqualValues(t, 2, raw["trialDaysRemaining"])
}

func TestUsageHandler_TrialData_Errors(t *testing.T) {
	t.Run("no user", func(t *testing.T) {
		h := NewUsageHandler(&mockUsageService{}, testLogger())
		rec := httptest.NewRecorder()
		h.TrialData(rec, httptest.NewRequest("GET", "/api/user/trial-data", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("store failure hides details", func(t *testing.T) {
		usage := &mockUsageService{
			SnapshotFunc: func(ctx context.Context, u *domain.User) (domain.UsageRecord, error) {
				return domain.UsageRecord{}, domain.Internal(errors.New("pq: relation chat_usage does not exist"), "UsageService.Snapshot", "failed to read usage")
			},
		}
		h := NewUsageHandler(usage, testLogger())
		rec := httptest.NewRecorder()
		h.TrialData(rec, withUser(httptest.NewRequest("GET", "/api/user/trial-data", nil), testUser()))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "chat_usage")
	})
}
