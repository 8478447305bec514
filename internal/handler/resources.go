package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/resources"
)

// ResourcesHandler serves the legal resource directory.
type ResourcesHandler struct {
	logger *slog.Logger
}

// NewResourcesHandler creates a new ResourcesHandler.
func NewResourcesHandler(logger *slog.Logger) *ResourcesHandler {
	return &ResourcesHandler{logger: logger}
}

// RegisterRoutes registers the public resource directory route.
func (h *ResourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/resources", h.List)
}

// List returns the directory, optionally narrowed by the q query parameter.
func (h *ResourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "ResourcesHandler.List"

	categories, err := resources.Directory()
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to load resource directory"))
		return
	}
	categories = resources.Filter(categories, r.URL.Query().Get("q"))
	if categories == nil {
		categories = []resources.Category{}
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}
