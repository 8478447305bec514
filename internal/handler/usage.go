package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/metrics"
	"github.com/DukeRupert/ohscentric/internal/service"
)

// UsageHandler serves the entitlement snapshot the client gates sending on.
type UsageHandler struct {
	usage  service.UsageService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage service.UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, logger: logger}
}

// RegisterRoutes registers the usage snapshot route.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/user/trial-data", requireUser(http.HandlerFunc(h.TrialData)))
}

// TrialData returns the caller's current usage record.
func (h *UsageHandler) TrialData(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	record, err := h.usage.Snapshot(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	metrics.UsageSnapshotServed(string(record.Plan))

	// Snapshots must never be served from a cache.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, record)
}
