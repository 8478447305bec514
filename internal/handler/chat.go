// Package handler contains the HTTP handlers of the Ohscentric API.
//
// This file implements the conversation endpoints.
//
// Routes handled:
//   - POST   /api/query         -> Query
//   - POST   /api/query/stream  -> QueryStream
//   - GET    /api/chat/history  -> History
//   - DELETE /api/chat/history  -> ClearHistory
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/ohscentric/internal/auth"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/service"
	"github.com/go-playground/validator/v10"
)

// ChatHandler answers questions and manages the stored transcript.
type ChatHandler struct {
	chat        service.ChatService
	transcripts service.TranscriptService
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat service.ChatService, transcripts service.TranscriptService, validate *validator.Validate, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		transcripts: transcripts,
		validate:    validate,
		logger:      logger,
	}
}

// RegisterRoutes registers the conversation routes.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/query", requireUser(http.HandlerFunc(h.Query)))
	mux.Handle("POST /api/query/stream", requireUser(http.HandlerFunc(h.QueryStream)))
	mux.Handle("GET /api/chat/history", requireUser(http.HandlerFunc(h.History)))
	mux.Handle("DELETE /api/chat/history", requireUser(http.HandlerFunc(h.ClearHistory)))
}

type queryRequest struct {
	Query       string                  `json:"query" validate:"required,max=4000"`
	ChatHistory []domain.HistoryMessage `json:"chat_history" validate:"omitempty,max=100,dive"`
}

// QueryResponse is the full answer to a question.
type QueryResponse struct {
	Answer  string              `json:"answer"`
	Sources []string            `json:"sources"`
	Usage   *domain.UsageRecord `json:"usage,omitempty"`
}

// streamEvent is one Server-Sent Event payload of a streamed answer.
type streamEvent struct {
	Delta   string              `json:"delta,omitempty"`
	Sources []string            `json:"sources,omitempty"`
	Usage   *domain.UsageRecord `json:"usage,omitempty"`
	Error   *streamError        `json:"error,omitempty"`
}

type streamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *ChatHandler) question(w http.ResponseWriter, r *http.Request, op string) (*domain.User, service.Question, bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return nil, service.Question{}, false
	}

	var req queryRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		respondError(w, r, h.logger, err)
		return nil, service.Question{}, false
	}
	return user, service.Question{Text: req.Query, History: req.ChatHistory}, true
}

// Query answers a question in a single JSON response.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	const op = "ChatHandler.Query"

	user, q, ok := h.question(w, r, op)
	if !ok {
		return
	}

	reply, err := h.chat.Ask(r.Context(), user, q)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := QueryResponse{Answer: reply.Answer, Sources: reply.Sources}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	if reply.Usage.Plan != "" {
		resp.Usage = &reply.Usage
	}
	writeJSON(w, http.StatusOK, resp)
}

// QueryStream answers a question as Server-Sent Events. Errors raised
// before the first delta are ordinary JSON error responses; later ones are
// sent as an error event and the stream ends without [DONE].
func (h *ChatHandler) QueryStream(w http.ResponseWriter, r *http.Request) {
	const op = "ChatHandler.QueryStream"

	user, q, ok := h.question(w, r, op)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
		w.WriteHeader(http.StatusOK)
	}
	send := func(payload []byte) error {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		return rc.Flush()
	}
	sendEvent := func(ev streamEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return send(payload)
	}

	reply, err := h.chat.Stream(r.Context(), user, q, func(delta string) error {
		start()
		return sendEvent(streamEvent{Delta: delta})
	})
	if err != nil {
		if !started {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		h.logger.Warn("stream ended with error", "user_id", user.ID, "error", err)
		_ = sendEvent(streamEvent{Error: &streamError{
			Code:    domain.ErrorCode(err),
			Message: domain.ErrorMessage(err),
		}})
		return
	}

	start()
	final := streamEvent{Sources: reply.Sources}
	if reply.Usage.Plan != "" {
		final.Usage = &reply.Usage
	}
	if err := sendEvent(final); err != nil {
		h.logger.Warn("failed to write final stream event", "user_id", user.ID, "error", err)
		return
	}
	if err := send([]byte("[DONE]")); err != nil {
		h.logger.Warn("failed to write [DONE] marker", "user_id", user.ID, "error", err)
	}
}

// History returns the caller's stored transcript.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	transcript, err := h.transcripts.Load(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if transcript.Turns == nil {
		transcript.Turns = []domain.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, transcript)
}

// ClearHistory deletes the caller's stored transcript.
func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := h.transcripts.Clear(r.Context(), user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
